package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{
			name:    "missing header",
			header:  "",
			wantErr: ErrMissingToken,
		},
		{
			name:   "valid bearer token",
			header: "Bearer abc.def.ghi",
			want:   "abc.def.ghi",
		},
		{
			name:    "no scheme",
			header:  "abc.def.ghi",
			wantErr: ErrMalformedHeader,
		},
		{
			name:    "wrong scheme",
			header:  "Basic abc.def.ghi",
			wantErr: ErrMalformedHeader,
		},
		{
			name:    "lowercase scheme",
			header:  "bearer abc.def.ghi",
			wantErr: ErrMalformedHeader,
		},
		{
			name:    "three parts",
			header:  "Bearer abc def",
			wantErr: ErrMalformedHeader,
		},
		{
			name:    "scheme only",
			header:  "Bearer",
			wantErr: ErrMalformedHeader,
		},
		{
			name:    "scheme with trailing space",
			header:  "Bearer ",
			wantErr: ErrMalformedHeader,
		},
		{
			name:    "leading space",
			header:  " Bearer abc",
			wantErr: ErrMalformedHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := ExtractBearerToken(tt.header)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, token)
		})
	}
}
