// Package scram implements the client side of a SCRAM-SHA-256 (RFC 5802)
// exchange, driven from the connection state machine's authenticating
// sub-state (spec.md §4.H). It is deliberately its own small state
// machine rather than a chain of nested continuations, so each step can
// be unit-tested from a recorded transcript (spec.md §9).
package scram

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/secure/precis"
)

// Method is the SASL mechanism name this package implements.
const Method = "SCRAM-SHA-256"

// MinIterations is the smallest server-advertised iteration count this
// client will accept (spec.md §4.H step 2).
const MinIterations = 4096

type clientState int

const (
	stateInitial clientState = iota
	stateClientFirstSent
	stateServerFirstReceived
	stateDone
)

// Client drives one SCRAM-SHA-256 exchange from the initial message
// through server-signature verification.
type Client struct {
	state clientState

	username string
	password string

	clientNonce string
	nonce       string // server-confirmed full nonce after step 2

	clientFirstBare string
	serverFirst     string

	saltedPassword []byte
	authMessage    string
}

// NewClient prepares a SCRAM-SHA-256 conversation for the given
// username/password. SASLprep normalization (precis OpaqueString) is
// applied to both before use.
func NewClient(username, password string) (*Client, error) {
	normUser, err := precis.OpaqueString.String(username)
	if err != nil {
		// Usernames containing characters SASLprep can't normalise are
		// rare; fall back to the raw value rather than failing auth
		// outright over a cosmetic normalisation issue.
		normUser = username
	}
	normPass, err := precis.OpaqueString.String(password)
	if err != nil {
		return nil, fmt.Errorf("scram: password failed SASLprep normalisation: %w", err)
	}
	nonce, err := generateNonce(18)
	if err != nil {
		return nil, err
	}
	return &Client{
		username:    normUser,
		password:    normPass,
		clientNonce: nonce,
	}, nil
}

func generateNonce(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("scram: generating client nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// FirstMessage returns the client-first-message to send in
// authentication_sasl_initial_response (spec.md §4.H step 1).
func (c *Client) FirstMessage() ([]byte, error) {
	if c.state != stateInitial {
		return nil, errors.New("scram: FirstMessage called out of order")
	}
	c.clientFirstBare = fmt.Sprintf("n=%s,r=%s", escapeSASLName(c.username), c.clientNonce)
	msg := "n,," + c.clientFirstBare
	c.state = stateClientFirstSent
	return []byte(msg), nil
}

func escapeSASLName(s string) string {
	s = strings.ReplaceAll(s, "=", "=3D")
	s = strings.ReplaceAll(s, ",", "=2C")
	return s
}

// HandleServerFirst parses the server-first-message, derives the salted
// password, and returns the client-final-message to send in
// authentication_sasl_response (spec.md §4.H steps 2-4).
func (c *Client) HandleServerFirst(serverFirst []byte) ([]byte, error) {
	if c.state != stateClientFirstSent {
		return nil, errors.New("scram: HandleServerFirst called out of order")
	}
	c.serverFirst = string(serverFirst)

	nonce, salt, iter, err := parseServerFirst(c.serverFirst)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(nonce, c.clientNonce) {
		return nil, errors.New("scram: server nonce does not extend the client nonce")
	}
	if iter < MinIterations {
		return nil, fmt.Errorf("scram: server iteration count %d below minimum %d", iter, MinIterations)
	}
	c.nonce = nonce

	c.saltedPassword = pbkdf2.Key([]byte(c.password), salt, iter, sha256.Size, sha256.New)

	clientFinalWithoutProof := fmt.Sprintf("c=biws,r=%s", c.nonce)
	c.authMessage = strings.Join([]string{c.clientFirstBare, c.serverFirst, clientFinalWithoutProof}, ",")

	clientKey := hmacSHA256(c.saltedPassword, "Client Key")
	storedKey := sha256.Sum256(clientKey)
	clientSignature := hmacSHA256(storedKey[:], c.authMessage)
	clientProof := xorBytes(clientKey, clientSignature)

	final := fmt.Sprintf("%s,p=%s", clientFinalWithoutProof, base64.StdEncoding.EncodeToString(clientProof))
	c.state = stateServerFirstReceived
	return []byte(final), nil
}

// HandleServerFinal verifies the server-final-message's signature
// (spec.md §4.H step 5). A mismatch is a fatal authentication error.
func (c *Client) HandleServerFinal(serverFinal []byte) error {
	if c.state != stateServerFirstReceived {
		return errors.New("scram: HandleServerFinal called out of order")
	}
	v, err := parseServerFinal(string(serverFinal))
	if err != nil {
		return err
	}
	gotSignature, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return fmt.Errorf("scram: malformed server signature: %w", err)
	}

	serverKey := hmacSHA256(c.saltedPassword, "Server Key")
	wantSignature := hmacSHA256(serverKey, c.authMessage)

	if subtle.ConstantTimeCompare(gotSignature, wantSignature) != 1 {
		return errors.New("scram: server signature verification failed")
	}
	c.state = stateDone
	return nil
}

// Done reports whether the exchange completed and verified successfully.
func (c *Client) Done() bool { return c.state == stateDone }

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// parseServerFirst parses "r=<nonce>,s=<salt>,i=<iter>".
func parseServerFirst(msg string) (nonce string, salt []byte, iter int, err error) {
	fields, err := parseFields(msg)
	if err != nil {
		return "", nil, 0, err
	}
	nonce, ok := fields["r"]
	if !ok {
		return "", nil, 0, errors.New("scram: server-first-message missing r=")
	}
	saltB64, ok := fields["s"]
	if !ok {
		return "", nil, 0, errors.New("scram: server-first-message missing s=")
	}
	salt, err = base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return "", nil, 0, fmt.Errorf("scram: malformed salt: %w", err)
	}
	iterStr, ok := fields["i"]
	if !ok {
		return "", nil, 0, errors.New("scram: server-first-message missing i=")
	}
	iter, err = strconv.Atoi(iterStr)
	if err != nil {
		return "", nil, 0, fmt.Errorf("scram: malformed iteration count: %w", err)
	}
	return nonce, salt, iter, nil
}

// parseServerFinal parses "v=<signature>".
func parseServerFinal(msg string) (string, error) {
	fields, err := parseFields(msg)
	if err != nil {
		return "", err
	}
	v, ok := fields["v"]
	if !ok {
		if e, ok := fields["e"]; ok {
			return "", fmt.Errorf("scram: server reported error: %s", e)
		}
		return "", errors.New("scram: server-final-message missing v=")
	}
	return v, nil
}

func parseFields(msg string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range strings.Split(msg, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("scram: malformed field %q", part)
		}
		out[kv[0]] = kv[1]
	}
	return out, nil
}
