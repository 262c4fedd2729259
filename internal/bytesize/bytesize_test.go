package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		input   string
		want    Size
	}{
		{name: "bytes", input: "512b", want: 512},
		{name: "kb", input: "1kb", want: KB},
		{name: "mb", input: "1mb", want: MB},
		{name: "gb", input: "2gb", want: 2 * GB},
		{name: "uppercase", input: "1MB", want: MB},
		{name: "spaces", input: " 10 mb ", want: 10 * MB},
		{name: "invalid number", input: "xmb", wantErr: ErrInvalidNumberFormat},
		{name: "unknown unit", input: "10xb", wantErr: ErrUnknownUnit},
		{name: "no unit", input: "10", wantErr: ErrInvalidSizeFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSize(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
