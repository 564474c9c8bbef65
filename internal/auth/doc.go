// Package auth provides the credentials the gateway hands out and checks.
//
// # Login Tokens
//
// The bot never shows customers a password to sign in to the web app. Instead
// every menu button carries a deep link with a signed token:
//
//	signer, err := auth.NewSigner(secret, ttl)
//	token, err := signer.Sign(user.ID, user.Username)
//	link := auth.CatalogURL(webAppBase, token)
//
// Tokens are HS256 JWTs with userId, username and autoLogin claims. The web
// app verifies them with the same secret; Verify is provided for that side and
// for tests.
//
// # Credentials
//
// Accounts created by the bot get a random credential that nobody sees. A
// credential reset generates a fresh temporary one, shows it once, and stores
// only the bcrypt hash:
//
//	plain, hash, err := auth.NewCredential()
//
// # Admin API
//
// AdminTokenMiddleware guards the operator HTTP API with a static bearer token
// from auth.admin_token. The optional X-Storefront-Actor header names the human
// operator; it lands in the request context and ends up in order audit events.
package auth
