package mimetypes

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		declared *string
		want     *string
	}{
		{"Nil stays nil", nil, nil},
		{"Blank becomes nil", lo.ToPtr("  "), nil},
		{"PNG with parameters", lo.ToPtr("image/png; charset=binary"), lo.ToPtr("image/png")},
		{"Upper case PDF", lo.ToPtr("Application/PDF"), lo.ToPtr("application/pdf")},
		{"Plain text loses its charset", lo.ToPtr("text/plain; charset=utf-8"), lo.ToPtr("text/plain")},
		{"Unknown vendor type kept", lo.ToPtr("application/x-acme-resume"), lo.ToPtr("application/x-acme-resume")},
		{"Invalid value kept verbatim", lo.ToPtr("not a mime"), lo.ToPtr("not a mime")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			req.Equal(tt.want, Normalize(tt.declared))
		})
	}
}
