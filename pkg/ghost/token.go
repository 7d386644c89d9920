package ghost

import (
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// adminTokenLifetime matches the 5 minute expiry Ghost expects on admin API
// tokens.
const adminTokenLifetime = 5 * time.Minute

// AdminToken creates a short-lived token for the Ghost admin API, signed
// with the configured API key. The token carries the key id in its header
// and is scoped to the /admin/ audience.
func (c *Client) AdminToken() (string, error) {
	if c.keyID == "" {
		return "", fmt.Errorf("ghost admin API key is not configured")
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: c.keySecret},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", c.keyID),
	)
	if err != nil {
		return "", fmt.Errorf("unable to create admin token signer: %w", err)
	}

	now := time.Now()
	claims := jwt.Claims{
		Audience: jwt.Audience{"/admin/"},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(adminTokenLifetime)),
	}

	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("unable to sign admin token: %w", err)
	}

	return token, nil
}
