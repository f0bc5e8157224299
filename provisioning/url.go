package provisioning

import (
	"encoding/base64"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Capabilities announced in the provisioning URL. Without them the primary
// does not offer to transfer its message history.
var Capabilities = []string{"backup4", "backup5"}

const qrPNGSize = 256

// URL builds the sgnl://linkdevice URI the primary device scans.
func URL(address string, publicKey []byte) *url.URL {
	q := "uuid=" + url.QueryEscape(address) +
		"&pub_key=" + url.QueryEscape(base64.StdEncoding.EncodeToString(publicKey)) +
		"&capabilities=" + url.QueryEscape(strings.Join(Capabilities, ","))
	return &url.URL{Scheme: "sgnl", Host: "linkdevice", RawQuery: q}
}

// RenderQR returns the URI as a QR code drawn with terminal block characters.
func RenderQR(uri string) (string, error) {
	q, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return q.ToSmallString(false), nil
}

// WriteQRPNG writes the URI as a PNG QR code to path.
func WriteQRPNG(uri, path string) error {
	return qrcode.WriteFile(uri, qrcode.Medium, qrPNGSize, path)
}
