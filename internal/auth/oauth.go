package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"
)

// プロバイダ名
const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

const (
	googleUserInfoURL   = "https://www.googleapis.com/oauth2/v3/userinfo"
	facebookUserInfoURL = "https://graph.facebook.com/me?fields=id,name,email,picture.type(large)"

	// maxUserInfoBytes はユーザー情報レスポンスの読み込み上限。
	maxUserInfoBytes = 1 << 20
)

// ErrProviderEmailMissing はプロバイダがメールアドレスを返さなかったことを表す。
// メールアドレスがアカウントの連携キーのため、サインインは失敗する。
var ErrProviderEmailMissing = errors.New("auth: provider did not return an email address")

// ErrProviderEmailUnverified はプロバイダがメールアドレスを未確認と返したことを表す。
// 未確認のアドレスで既存アカウントに連携させないため、サインインは失敗する。
var ErrProviderEmailUnverified = errors.New("auth: provider email address is not verified")

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
	Picture        string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Name はプロバイダ名（"google"、"facebook"）を返す。
	Name() string
	// AuthCodeURL は認可画面へのURLを生成する。
	AuthCodeURL(state string) string
	// Exchange は認可コードをトークンに交換し、ユーザー情報を取得する。
	Exchange(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ProviderConfig はOAuth2Providerの設定。
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	// RedirectBaseURL はコールバックURLの基点。末尾に/auth/{provider}/callbackを付ける。
	RedirectBaseURL string
	// HTTPClient はトークン交換とユーザー情報取得に使うクライアント。
	// 本番ではSSRF対策済みのクライアントを渡す。
	HTTPClient *http.Client
}

// OAuth2Provider はgolang.org/x/oauth2によるOAuthProviderの実装。
type OAuth2Provider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
	client      *http.Client
	decode      func(body []byte) (*OAuthUserInfo, error)
}

// compile-time interface check
var _ OAuthProvider = (*OAuth2Provider)(nil)

// NewGoogleProvider はGoogleのOAuth2Providerを生成する。
func NewGoogleProvider(cfg ProviderConfig) *OAuth2Provider {
	return newOAuth2Provider(ProviderGoogle, cfg, google.Endpoint,
		[]string{"openid", "profile", "email"}, googleUserInfoURL, decodeGoogleUserInfo)
}

// NewFacebookProvider はFacebookのOAuth2Providerを生成する。
func NewFacebookProvider(cfg ProviderConfig) *OAuth2Provider {
	return newOAuth2Provider(ProviderFacebook, cfg, facebook.Endpoint,
		[]string{"email", "public_profile"}, facebookUserInfoURL, decodeFacebookUserInfo)
}

func newOAuth2Provider(
	name string,
	cfg ProviderConfig,
	endpoint oauth2.Endpoint,
	scopes []string,
	userInfoURL string,
	decode func([]byte) (*OAuthUserInfo, error),
) *OAuth2Provider {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &OAuth2Provider{
		name: name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
			RedirectURL:  cfg.RedirectBaseURL + "/auth/" + name + "/callback",
		},
		userInfoURL: userInfoURL,
		client:      client,
		decode:      decode,
	}
}

// WithEndpoints はトークンエンドポイントとユーザー情報URLを差し替えたコピーを返す。
// テストでローカルのスタブサーバーに向けるために使う。
func (p *OAuth2Provider) WithEndpoints(endpoint oauth2.Endpoint, userInfoURL string) *OAuth2Provider {
	cp := *p
	cfg := *p.config
	cfg.Endpoint = endpoint
	cp.config = &cfg
	cp.userInfoURL = userInfoURL
	return &cp
}

// Name はプロバイダ名を返す。
func (p *OAuth2Provider) Name() string {
	return p.name
}

// AuthCodeURL は認可画面へのURLを生成する。
func (p *OAuth2Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange は認可コードをトークンに交換し、ユーザー情報を取得する。
func (p *OAuth2Provider) Exchange(ctx context.Context, code string) (*OAuthUserInfo, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s token exchange: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s userinfo request: %w", p.name, err)
	}

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s userinfo request: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s userinfo returned status %d", p.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, fmt.Errorf("%s userinfo read: %w", p.name, err)
	}

	info, err := p.decode(body)
	if err != nil {
		return nil, fmt.Errorf("%s userinfo decode: %w", p.name, err)
	}
	if info.Email == "" {
		return nil, ErrProviderEmailMissing
	}
	info.Provider = p.name
	return info, nil
}

func decodeGoogleUserInfo(body []byte) (*OAuthUserInfo, error) {
	var v struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	// メールアドレスを返す場合、Googleはemail_verifiedも返す
	if v.Email != "" && (v.EmailVerified == nil || !*v.EmailVerified) {
		return nil, ErrProviderEmailUnverified
	}
	return &OAuthUserInfo{
		ProviderUserID: v.Sub,
		Email:          v.Email,
		Name:           v.Name,
		Picture:        v.Picture,
	}, nil
}

func decodeFacebookUserInfo(body []byte) (*OAuthUserInfo, error) {
	var v struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return &OAuthUserInfo{
		ProviderUserID: v.ID,
		Email:          v.Email,
		Name:           v.Name,
		Picture:        v.Picture.Data.URL,
	}, nil
}
