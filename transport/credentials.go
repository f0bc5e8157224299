package transport

import (
	"encoding/base64"

	"golang.org/x/text/encoding/charmap"
)

// AuthCredentials holds the credentials for the websocket connection
type AuthCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AsBasic returns the value of a Basic Authorization header.
func (a *AuthCredentials) AsBasic() string {
	usernameAndPassword := a.Username + ":" + a.Password
	dec := charmap.Windows1250.NewDecoder()
	out, _ := dec.String(usernameAndPassword)
	encoded := base64.StdEncoding.EncodeToString([]byte(out))
	return "Basic " + encoded
}
