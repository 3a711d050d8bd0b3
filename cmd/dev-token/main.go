// Command dev-token creates the development RSA key pair and signs access
// tokens for trying the API with curl.
//
//	dev-token -generate
//	dev-token -account account:abc -email wine_lover@sipmate.local -username wine_lover
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/forgo/sipmate/api/pkg/jwt"
)

func main() {
	privateKeyPath := flag.String("key", "./keys/private.pem", "Path to JWT private key")
	publicKeyPath := flag.String("pub", "./keys/public.pem", "Path to JWT public key")
	generate := flag.Bool("generate", false, "Generate the key pair if it does not exist")
	accountID := flag.String("account", "", "Account record id for the token subject")
	email := flag.String("email", "", "Sign-in email for the token")
	username := flag.String("username", "", "Username for the token")
	issuer := flag.String("issuer", "api.sipmate.app", "JWT issuer")
	expMins := flag.Int("exp", 60, "Token expiration in minutes")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	if *generate {
		if err := ensureKeys(*privateKeyPath, *publicKeyPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating keys: %v\n", err)
			os.Exit(1)
		}
		if *accountID == "" {
			return
		}
	}

	if *accountID == "" {
		fmt.Fprintln(os.Stderr, "Error: -account is required to sign a token")
		flag.Usage()
		os.Exit(2)
	}

	jwtService, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: *privateKeyPath,
		Issuer:         *issuer,
		ExpirationMins: *expMins,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating JWT service: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nGenerate keys first with: dev-token -generate\n")
		os.Exit(1)
	}

	token, err := jwtService.Sign(jwt.NewClaims(*accountID, *email, *username))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		os.Exit(1)
	}

	if *outputJSON {
		output := map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   *expMins * 60,
			"account_id":   *accountID,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(output)
		return
	}

	expTime := time.Now().Add(time.Duration(*expMins) * time.Minute)
	fmt.Printf("Account:  %s\n", *accountID)
	fmt.Printf("Expires:  %s\n", expTime.Format(time.RFC3339))
	fmt.Println()
	fmt.Println(token)
	fmt.Println()
	fmt.Printf("  curl -H 'Authorization: Bearer %s' http://localhost:8080/v1/saved-wines\n", token)
}

// ensureKeys writes a new key pair unless the private key already exists
func ensureKeys(privateKeyPath, publicKeyPath string) error {
	if _, err := os.Stat(privateKeyPath); err == nil {
		fmt.Printf("Keeping existing key %s\n", privateKeyPath)
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	for _, p := range []string{privateKeyPath, publicKeyPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return err
		}
	}
	if err := jwt.GenerateKeyPair(privateKeyPath, publicKeyPath); err != nil {
		return err
	}
	fmt.Printf("Wrote %s and %s\n", privateKeyPath, publicKeyPath)
	return nil
}
