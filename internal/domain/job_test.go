package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModifyRequestValidate(t *testing.T) {
	valid := ModifyRequest{
		SourceType: SourceTypeObject,
		Source:     "uploads/cat.jpg",
		Operations: []string{"crop 1.5"},
		Variants: []Variant{
			{Name: "thumb", Destination: "outputs/cat-thumb.jpg", Operations: []string{"resize max_200 150"}},
			{Name: "large", Destination: "outputs/cat-large.jpg"},
		},
	}
	require.NoError(t, valid.Validate())

	withHook := valid
	withHook.WebhookURL = "https://hooks.example.com/pixelmod"
	require.NoError(t, withHook.Validate())

	tests := map[string]ModifyRequest{
		"empty":          {},
		"unknown source": {SourceType: "http_url", Source: "x"},
		"missing source": {SourceType: SourceTypeLocalFile},
		"blank command":  {SourceType: SourceTypeLocalFile, Source: "a.png", Operations: []string{""}},
		"variant without destination": {
			SourceType: SourceTypeLocalFile,
			Source:     "a.png",
			Variants:   []Variant{{Name: "thumb"}},
		},
		"bad webhook": {
			SourceType: SourceTypeLocalFile,
			Source:     "a.png",
			WebhookURL: "not a url",
		},
		"destination with variants": {
			SourceType:  SourceTypeLocalFile,
			Source:      "a.png",
			Destination: "out.png",
			Variants:    []Variant{{Name: "thumb", Destination: "a"}},
		},
		"mime type with variants": {
			SourceType: SourceTypeLocalFile,
			Source:     "a.png",
			MimeType:   "png",
			Variants:   []Variant{{Name: "thumb", Destination: "a"}},
		},
		"duplicate variant": {
			SourceType: SourceTypeLocalFile,
			Source:     "a.png",
			Variants: []Variant{
				{Name: "thumb", Destination: "a"},
				{Name: "Thumb", Destination: "b"},
			},
		},
	}
	for name, req := range tests {
		assert.Error(t, req.Validate(), name)
	}
}

func TestModifyRequestOutputs(t *testing.T) {
	req := ModifyRequest{Destination: "out.png", MimeType: "png"}
	assert.Equal(t, []Variant{{Name: "default", Destination: "out.png", MimeType: "png"}}, req.Outputs())

	req.Variants = []Variant{{Name: "a", Destination: "a.jpg"}}
	assert.Equal(t, req.Variants, req.Outputs())
}
