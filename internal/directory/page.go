package directory

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/bissquit/business-cards/internal/domain"
)

//go:embed templates/profile.html
var profileHTML string

var profileTemplate = template.Must(template.New("profile").Parse(profileHTML))

// inlineImagePrefixes are the data URI forms accepted as stored profile pictures.
var inlineImagePrefixes = []string{
	"data:image/png;",
	"data:image/jpeg;",
	"data:image/gif;",
	"data:image/webp;",
}

type profileView struct {
	Profile    *domain.PublicProfile
	PictureSrc any
	QRCodePath string
}

// pictureSource marks inline raster images as trusted URLs; anything else
// goes through the template's URL sanitizer.
func pictureSource(picture *string) any {
	if picture == nil {
		return ""
	}
	lower := strings.ToLower(*picture)
	for _, prefix := range inlineImagePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return template.URL(*picture)
		}
	}
	return *picture
}

// RenderProfilePage renders the public profile page. A nil profile renders the not-found page.
func RenderProfilePage(profile *domain.PublicProfile) ([]byte, error) {
	view := profileView{Profile: profile}
	if profile != nil {
		view.QRCodePath = QRCodePath(profile.ID)
		view.PictureSrc = pictureSource(profile.ProfilePicture)
	}

	var buf bytes.Buffer
	if err := profileTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render profile page: %w", err)
	}
	return buf.Bytes(), nil
}

// QRCodePath returns the API path serving the QR code of an employee.
func QRCodePath(id string) string {
	return "/api/v1/public/employees/" + id + "/qrcode"
}
