package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrLoginExpired     = errors.New("login data is expired")
)

// LoginUser is the profile the Login Widget vouches for.
type LoginUser struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	PhotoURL  string
	AuthDate  time.Time
}

// LoginFields flattens a decoded widget JSON object into the string form the
// signature is computed over. Decode with json.Decoder.UseNumber so numeric
// ids keep their exact digits.
func LoginFields(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = strconv.FormatBool(val)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		}
	}
	return out
}

// VerifyLogin checks the widget hash: HMAC-SHA256 keyed by SHA256(botToken)
// over the sorted "key=value" lines of every field except hash. A maxAge of
// zero disables the freshness check.
func VerifyLogin(fields map[string]string, botToken string, maxAge time.Duration, now time.Time) (*LoginUser, error) {
	if botToken == "" {
		return nil, ErrNoToken
	}
	for _, k := range []string{"id", "auth_date", "hash"} {
		if fields[k] == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, k)
		}
	}

	want, err := hex.DecodeString(fields["hash"])
	if err != nil {
		return nil, ErrInvalidSignature
	}
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(dataCheckString(fields)))
	if !hmac.Equal(mac.Sum(nil), want) {
		return nil, ErrInvalidSignature
	}

	authUnix, err := strconv.ParseInt(fields["auth_date"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid auth_date: %w", err)
	}
	authDate := time.Unix(authUnix, 0)
	if maxAge > 0 && now.Sub(authDate) > maxAge {
		return nil, ErrLoginExpired
	}

	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}

	return &LoginUser{
		ID:        id,
		FirstName: fields["first_name"],
		LastName:  fields["last_name"],
		Username:  fields["username"],
		PhotoURL:  fields["photo_url"],
		AuthDate:  authDate,
	}, nil
}

func dataCheckString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + fields[k]
	}
	return strings.Join(lines, "\n")
}

// SignLogin produces the hash Telegram would attach to fields. Useful for
// fixtures and local development.
func SignLogin(fields map[string]string, botToken string) string {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(dataCheckString(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}
