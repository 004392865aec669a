package layerspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
)

func TestLexer(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenType
	}{
		{"level:ERROR", []TokenType{TokenIdent, TokenColon, TokenValue, TokenEOF}},
		{`filter:"a b"`, []TokenType{TokenIdent, TokenColon, TokenString, TokenEOF}},
		{"filter:x invert", []TokenType{TokenIdent, TokenColon, TokenValue, TokenIdent, TokenEOF}},
		{"level:ERROR | hl:x", []TokenType{TokenIdent, TokenColon, TokenValue, TokenPipe, TokenIdent, TokenColon, TokenValue, TokenEOF}},
		{"time from:2024-01-01T10:00:00", []TokenType{TokenIdent, TokenIdent, TokenColon, TokenValue, TokenEOF}},
		{"color:#ff0000", []TokenType{TokenIdent, TokenColon, TokenValue, TokenEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lexer := NewLexer(tt.input)
			for i, expected := range tt.expected {
				tok := lexer.NextToken()
				assert.Equal(t, expected, tok.Type, "token %d (%q)", i, tok.Value)
			}
		})
	}
}

func TestLexer_StringEscapes(t *testing.T) {
	tok := NewLexer(`"say \"hi\" \d+ C:\\tmp"`).NextToken()
	assert.Equal(t, TokenString, tok.Type)
	assert.Equal(t, `say "hi" \d+ C:\tmp`, tok.Value)
}

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Spec
	}{
		{
			input: "level:error,Fatal",
			want:  Spec{Type: layer.TypeLevel, Enabled: true, Config: layer.LevelConfig{Levels: []string{"ERROR", "FATAL"}}},
		},
		{
			input: `filter:"connection reset" invert case:false name:"No resets"`,
			want: Spec{Type: layer.TypeFilter, Name: "No resets", Enabled: true, Config: layer.FilterConfig{
				MatchOptions: layer.MatchOptions{Query: "connection reset"},
				Invert:       true,
			}},
		},
		{
			input: "hl:timeout word color:#ef4444 opacity:60",
			want: Spec{Type: layer.TypeHighlight, Enabled: true, Config: layer.HighlightConfig{
				MatchOptions: layer.MatchOptions{Query: "timeout", WholeWord: true},
				Color:        "#ef4444",
				Opacity:      60,
			}},
		},
		{
			input: `transform:"user=\w+" regex with:user=*** off`,
			want: Spec{Type: layer.TypeTransform, Enabled: false, Config: layer.TransformConfig{
				MatchOptions: layer.MatchOptions{Query: `user=\w+`, Regex: true},
				ReplaceWith:  "user=***",
			}},
		},
		{
			input: "range:10-20",
			want:  Spec{Type: layer.TypeRange, Enabled: true, Config: layer.RangeConfig{From: layer.IntPtr(10), To: layer.IntPtr(20)}},
		},
		{
			input: "lines:..5",
			want:  Spec{Type: layer.TypeRange, Enabled: true, Config: layer.RangeConfig{To: layer.IntPtr(5)}},
		},
		{
			input: "time from:2024-01-01T00:00:06 format:\\[(\\d+)\\]",
			want: Spec{Type: layer.TypeTimeRange, Enabled: true, Config: layer.TimeRangeConfig{
				StartTime:  "2024-01-01T00:00:06",
				TimeFormat: `\[(\d+)\]`,
			}},
		},
		{
			input: "folder:Noise",
			want:  Spec{Type: layer.TypeFolder, Name: "Noise", Enabled: true, Config: layer.FolderConfig{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOne(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Pipeline(t *testing.T) {
	specs, err := Parse("level:ERROR | highlight:db | filter:retry invert")
	require.NoError(t, err)
	require.Len(t, specs, 3)
	assert.Equal(t, layer.TypeLevel, specs[0].Type)
	assert.Equal(t, layer.TypeHighlight, specs[1].Type)
	assert.Equal(t, layer.DefaultHighlightColor, specs[1].Config.(layer.HighlightConfig).Color)
	assert.True(t, specs[2].Config.(layer.FilterConfig).Invert)

	l := specs[0].Layer("x")
	assert.Equal(t, "x", l.ID)
	assert.True(t, l.Enabled)

	specs, err = Parse("   ")
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		input string
		err   error
	}{
		{"sparkle:x", ErrUnknownType},
		{"level:ERROR invert", ErrUnknownOption},
		{"hl:x opacity:150", ErrInvalidValue},
		{"filter:x regex:maybe", ErrInvalidValue},
		{"range:a-b", ErrInvalidValue},
		{"level: ERROR", ErrSyntax},
		{"| level", ErrSyntax},
		{`filter:"x" "y"`, ErrSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err := ParseOne("level | level")
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestFormat_RoundTrip(t *testing.T) {
	off := layer.New("", "Masked users", layer.TypeTransform, layer.TransformConfig{
		MatchOptions: layer.MatchOptions{Query: `user="\w+"`, Regex: true},
		ReplaceWith:  "user=***",
	})
	off.Enabled = false

	layers := []*layer.Layer{
		off,
		layer.New("", "", layer.TypeHighlight, layer.HighlightConfig{MatchOptions: layer.MatchOptions{Query: "a|b", CaseSensitive: true}, Color: "#123456", Opacity: 40}),
		layer.New("", "Head", layer.TypeRange, layer.RangeConfig{From: layer.IntPtr(3)}),
		layer.New("", "", layer.TypeTimeRange, layer.TimeRangeConfig{StartTime: "2024-01-01 10:00:00", EndTime: "1700000000.5"}),
		layer.New("", "", layer.TypeLevel, layer.LevelConfig{Levels: []string{"WARN", "ERROR"}}),
		layer.New("", "", layer.TypeFilter, layer.FilterConfig{Invert: true}),
	}
	for _, l := range layers {
		text := Format(l)
		t.Run(text, func(t *testing.T) {
			spec, err := ParseOne(text)
			require.NoError(t, err)
			assert.True(t, layer.Equal(l, spec.Layer("")), "got %#v", spec)
		})
	}
}
