package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// issueCheckoutToken creates a short lived anti-forgery token bound to a
// product. The storefront receives it with the checkout configuration and
// must echo it back when creating the session.
func (a *API) issueCheckoutToken(productID uint64) (string, error) {
	j := jwt.New()
	if err := j.Set("productId", productID); err != nil {
		return "", err
	}
	jmap, err := j.AsMap(context.Background())
	if err != nil {
		return "", err
	}
	jwtauth.SetIssuedNow(jmap)
	jwtauth.SetExpiryIn(jmap, checkoutTokenExpiration)
	_, token, err := a.auth.Encode(jmap)
	return token, err
}

// verifyCheckoutToken checks the token signature and expiry, and that the
// token was issued for the given product.
func (a *API) verifyCheckoutToken(token string, productID uint64) error {
	parsed, err := jwtauth.VerifyToken(a.auth, token)
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	claim, ok := parsed.Get("productId")
	if !ok {
		return fmt.Errorf("token has no product claim")
	}
	claimedID, err := claimToUint64(claim)
	if err != nil {
		return err
	}
	if claimedID != productID {
		return fmt.Errorf("token was issued for another product")
	}
	return nil
}

// claimToUint64 normalizes the numeric claim type, which depends on how the
// token was decoded.
func claimToUint64(claim any) (uint64, error) {
	switch v := claim.(type) {
	case uint64:
		return v, nil
	case int64:
		return uint64(v), nil
	case float64:
		return uint64(v), nil
	case json.Number:
		return strconv.ParseUint(v.String(), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected product claim type %T", claim)
	}
}
