package storage

import "testing"

func TestValidateContentType(t *testing.T) {
	valid := []string{
		"image/jpeg",
		"image/png",
		"IMAGE/PNG",
		"image/webp; charset=binary",
		" image/gif ",
	}
	for _, ct := range valid {
		if err := ValidateContentType(ct); err != nil {
			t.Errorf("expected %q to be allowed: %v", ct, err)
		}
	}

	invalid := []string{
		"application/pdf",
		"image/tiff",
		"video/mp4",
		"",
	}
	for _, ct := range invalid {
		if err := ValidateContentType(ct); err == nil {
			t.Errorf("expected %q to be rejected", ct)
		}
	}
}
