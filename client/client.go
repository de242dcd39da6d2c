package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/form3tech-oss/jwt-go"
	"github.com/jhaldar/sprout/lib/utils"
	"github.com/jhaldar/sprout/models"
	"github.com/jhaldar/sprout/report"
	"github.com/zalando/go-keyring"
)

// jwtSigningKey is used to verify JWT tokens locally before using them.
var jwtSigningKey string

// KeyringKey is used to store and retrieve the JWT token from the system keyring.
var KeyringKey string

// RefreshKeyringKey is used to store and retrieve the refresh token from the system keyring.
var RefreshKeyringKey string

// ServerURL is the URL of the server the client is connecting to.
var ServerURL string

// httpClient is the HTTP client used to make requests to the server.
var httpClient = &http.Client{}

// KeyringService is the name of the service in the system keyring where the
// JWT token and refresh token are stored.
const KeyringService = "Sprout"

// TokenResult is the token pair returned by the auth endpoints.
type TokenResult struct {
	Token        string
	RefreshToken string
}

// ReportResult is a child's period report with the reached reward tier, if
// any.
type ReportResult struct {
	Report report.Report `json:"report"`
	Tier   *report.Tier  `json:"tier"`
}

// InitClient initializes the package configuration. This function must be
// called before using any other functions in the package.
func InitClient(serverURL, signingKey, authTokenKey, refreshTokenKey string) {
	ServerURL = serverURL
	jwtSigningKey = signingKey
	KeyringKey = authTokenKey
	RefreshKeyringKey = refreshTokenKey
}

// decodeJWT decodes a JWT token and returns the claims contained within it.
func decodeJWT(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSigningKey), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// isJwtTokenInKeyring checks if the system keyring contains a JWT token.
func isJwtTokenInKeyring() (bool, string, error) {
	token, err := keyring.Get(KeyringService, KeyringKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return false, "", nil
		}
		return false, "", errors.New("failed to access keyring: " + err.Error())
	}
	return true, token, nil
}

// saveTokens stores a token pair in the system keyring atomically: if the
// refresh token cannot be stored, the access token is rolled back.
func saveTokens(token, refreshToken string) error {
	if err := keyring.Set(KeyringService, KeyringKey, token); err != nil {
		return err
	}
	if refreshToken != "" {
		if err := keyring.Set(KeyringService, RefreshKeyringKey, refreshToken); err != nil {
			keyring.Delete(KeyringService, KeyringKey)
			return err
		}
	}
	return nil
}

// ClearKeyring clears the JWT token and refresh token from the system keyring
// atomically.
func ClearKeyring() error {
	accessToken, err := keyring.Get(KeyringService, KeyringKey)
	if err != nil {
		return errors.New("failed to retrieve access token from keyring: " + err.Error())
	}

	if err := keyring.Delete(KeyringService, KeyringKey); err != nil {
		return errors.New("failed to delete access token from keyring: " + err.Error())
	}

	if err := keyring.Delete(KeyringService, RefreshKeyringKey); err != nil {
		keyring.Set(KeyringService, KeyringKey, accessToken)
		return errors.New("failed to delete refresh token from keyring: " + err.Error())
	}

	return nil
}

// IsUserAuthenticated checks if a parent is signed in by looking for a valid
// JWT token in the system keyring. If the token is expired, it tries to
// refresh it using the refresh token. Returns the usable token, or an empty
// string if nobody is signed in.
func IsUserAuthenticated() (string, error) {
	hasJwt, tokenStr, err := isJwtTokenInKeyring()
	if err != nil {
		return "", err
	}
	if !hasJwt {
		return "", nil
	}

	if _, err := decodeJWT(tokenStr); err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return RefreshAccessToken(tokenStr)
		}
		return "", err
	}

	return tokenStr, nil
}

// sendRequest sends one JSON request to the server. A non-nil token is
// attached as a bearer credential; a non-nil out receives the decoded
// response body. Error responses are turned into plain errors carrying the
// server's message.
func sendRequest(method, path string, token *string, body interface{}, out interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %v", err)
		}
		reqBody = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequest(method, ServerURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != nil {
		req.Header.Add("Authorization", "Bearer "+*token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var serverErr struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(bodyBytes, &serverErr); err == nil && serverErr.Error != "" {
			return resp, errors.New(serverErr.Error)
		}
		return resp, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

// authedRequest is sendRequest for endpoints that require a signed-in parent.
func authedRequest(method, path string, body interface{}, out interface{}) error {
	token, err := IsUserAuthenticated()
	if err != nil {
		return err
	}
	if token == "" {
		return errors.New("no user is currently signed in")
	}
	_, err = sendRequest(method, path, &token, body, out)
	return err
}

// RefreshAccessToken exchanges the stored refresh token for a new token pair.
func RefreshAccessToken(tokenStr string) (string, error) {
	refreshToken, err := keyring.Get(KeyringService, RefreshKeyringKey)
	if err != nil {
		return "", err
	}

	var tokens struct {
		AuthToken    string `json:"auth_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if _, err := sendRequest("POST", "/auth/refresh", &tokenStr, map[string]string{"refresh_token": refreshToken}, &tokens); err != nil {
		return "", err
	}
	if err := saveTokens(tokens.AuthToken, tokens.RefreshToken); err != nil {
		return "", err
	}
	return tokens.AuthToken, nil
}

// SignIn signs a parent in with the provided username and password and stores
// the returned tokens in the system keyring.
func SignIn(username, password string) (string, string, error) {
	isSignedIn, _, err := isJwtTokenInKeyring()
	if err != nil {
		return "", "", err
	}
	if isSignedIn {
		return "", "", errors.New("a user is already signed in")
	}

	var tokens struct {
		AuthToken    string `json:"auth_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if _, err := sendRequest("POST", "/auth/signin", nil, map[string]string{
		"username": username,
		"password": password,
	}, &tokens); err != nil {
		return "", "", err
	}
	if err := saveTokens(tokens.AuthToken, tokens.RefreshToken); err != nil {
		return "", "", err
	}
	return tokens.AuthToken, tokens.RefreshToken, nil
}

// SignUp registers a new parent account with its family profile and first
// child, and stores the returned tokens in the system keyring.
func SignUp(username, email, password, familyName, firstChildName string) (string, string, error) {
	isSignedIn, _, err := isJwtTokenInKeyring()
	if err != nil {
		return "", "", err
	}
	if isSignedIn {
		return "", "", errors.New("a user is already signed in")
	}

	if len(username) < 2 {
		return "", "", errors.New("username must be at least 2 characters")
	}
	if !utils.ValidateEmail(email) {
		return "", "", errors.New("invalid email format")
	}
	if !utils.ValidatePassword(password) {
		return "", "", errors.New("password must be at least 8 characters and contain both letters and numbers")
	}
	if firstChildName == "" {
		return "", "", errors.New("a first child name is required")
	}

	var tokens struct {
		AuthToken    string `json:"auth_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if _, err := sendRequest("POST", "/auth/signup", nil, map[string]string{
		"username":         username,
		"email":            email,
		"password":         password,
		"family_name":      familyName,
		"first_child_name": firstChildName,
	}, &tokens); err != nil {
		return "", "", err
	}
	if err := saveTokens(tokens.AuthToken, tokens.RefreshToken); err != nil {
		return "", "", err
	}
	return tokens.AuthToken, tokens.RefreshToken, nil
}

// SignOut removes the stored tokens from the system keyring.
func SignOut() error {
	token, err := IsUserAuthenticated()
	if err != nil {
		return err
	}
	if token == "" {
		return errors.New("no user is currently signed in")
	}
	return ClearKeyring()
}

// UpdateAccount updates the signed-in parent's credentials. The current
// password is required; empty new fields are left unchanged.
func UpdateAccount(currentPassword, newUsername, newEmail, newPassword string) error {
	if newUsername == "" && newEmail == "" && newPassword == "" {
		return errors.New("nothing to update")
	}
	if newUsername != "" && len(newUsername) < 2 {
		return errors.New("new username must be at least 2 characters")
	}
	if newEmail != "" && !utils.ValidateEmail(newEmail) {
		return errors.New("new email is in invalid format")
	}
	if newPassword != "" && !utils.ValidatePassword(newPassword) {
		return errors.New("new password must be at least 8 characters and contain both letters and numbers")
	}

	return authedRequest("PUT", "/auth/account", map[string]string{
		"current_password": currentPassword,
		"new_username":     newUsername,
		"new_email":        newEmail,
		"new_password":     newPassword,
	}, nil)
}

// GetProfile fetches the family profile: children, behavior catalog, and
// reporting settings.
func GetProfile() (*models.Profile, error) {
	var profile models.Profile
	if err := authedRequest("GET", "/profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// AddChild adds a new child to the family profile.
func AddChild(name string) (*models.Profile, error) {
	var profile models.Profile
	if err := authedRequest("POST", "/profile/children", map[string]string{"name": name}, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// RenameChild changes a child's display name.
func RenameChild(childID, name string) (*models.Profile, error) {
	var profile models.Profile
	if err := authedRequest("PUT", "/profile/children/"+childID, map[string]string{"name": name}, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// RemoveChild removes a child from the family profile.
func RemoveChild(childID string) (*models.Profile, error) {
	var profile models.Profile
	if err := authedRequest("DELETE", "/profile/children/"+childID, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// AddBehavior adds a new behavior to the catalog.
func AddBehavior(label string) (*models.Profile, error) {
	var profile models.Profile
	if err := authedRequest("POST", "/profile/behaviors", map[string]string{"label": label}, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetBehaviorEnabled toggles a behavior's enabled flag.
func SetBehaviorEnabled(behaviorID string, enabled bool) (*models.Profile, error) {
	var profile models.Profile
	if err := authedRequest("PUT", "/profile/behaviors/"+behaviorID, map[string]bool{"enabled": enabled}, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Award sets one behavior's point value for a child on a date. Value must be
// -1, 0, or +1.
func Award(childID, behaviorID, date string, value int) (*models.DayRecord, error) {
	var record models.DayRecord
	if err := authedRequest("POST", "/points", map[string]interface{}{
		"child_id":    childID,
		"behavior_id": behaviorID,
		"date":        date,
		"value":       value,
	}, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// reportPath builds the query string shared by the report endpoints.
func reportPath(base, childID, mode, anchor string) string {
	path := base + "?child=" + childID
	if mode != "" {
		path += "&mode=" + mode
	}
	if anchor != "" {
		path += "&anchor=" + anchor
	}
	return path
}

// GetReport fetches a child's report for the requested period. Mode defaults
// to month and anchor to today when empty.
func GetReport(childID, mode, anchor string) (*ReportResult, error) {
	var result ReportResult
	if err := authedRequest("GET", reportPath("/report", childID, mode, anchor), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExportReport downloads a child's report as CSV. Returns the server-chosen
// filename and the file contents.
func ExportReport(childID, mode, anchor string) (string, string, error) {
	token, err := IsUserAuthenticated()
	if err != nil {
		return "", "", err
	}
	if token == "" {
		return "", "", errors.New("no user is currently signed in")
	}

	req, err := http.NewRequest("GET", ServerURL+reportPath("/report/export", childID, mode, anchor), nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Add("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("export failed with status %d", resp.StatusCode)
	}

	filename := "report.csv"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name, ok := params["filename"]; ok {
			filename = name
		}
	}
	return filename, string(bodyBytes), nil
}
