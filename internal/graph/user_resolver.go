package graph

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"

	"github.com/graphql-go/graphql"

	"lireddit/server/internal/auth"
	"lireddit/server/internal/domain"
	"lireddit/server/internal/mail"
	"lireddit/server/internal/session"
	"lireddit/server/internal/store"
)

// UserStore is the persistence UserResolver needs.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*domain.User, error)
	UserByID(ctx context.Context, id int) (*domain.User, error)
	UserByUsername(ctx context.Context, username string) (*domain.User, error)
	UserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
}

// UserResolver serves registration, login and password reset.
type UserResolver struct {
	store     UserStore
	mailer    mail.Mailer
	resetBase string
	logger    *slog.Logger
}

// NewUserResolver returns a resolver that mails reset links rooted at
// frontendOrigin, e.g. https://example.com/change-password/<token>.
func NewUserResolver(s UserStore, mailer mail.Mailer, frontendOrigin string, logger *slog.Logger) *UserResolver {
	return &UserResolver{
		store:     s,
		mailer:    mailer,
		resetBase: strings.TrimSuffix(frontendOrigin, "/") + "/change-password/",
		logger:    logger,
	}
}

func (r *UserResolver) Queries() graphql.Fields {
	return graphql.Fields{
		"me": &graphql.Field{
			Type:    userType,
			Resolve: r.me,
		},
	}
}

func (r *UserResolver) Mutations() graphql.Fields {
	return graphql.Fields{
		"register": &graphql.Field{
			Type: graphql.NewNonNull(userResponseType),
			Args: graphql.FieldConfigArgument{
				"options": &graphql.ArgumentConfig{Type: graphql.NewNonNull(usernamePasswordInputType)},
			},
			Resolve: r.register,
		},
		"login": &graphql.Field{
			Type: graphql.NewNonNull(userResponseType),
			Args: graphql.FieldConfigArgument{
				"usernameOrEmail": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"password":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: r.login,
		},
		"logout": &graphql.Field{
			Type:    graphql.NewNonNull(graphql.Boolean),
			Resolve: r.logout,
		},
		"forgotPassword": &graphql.Field{
			Type: graphql.NewNonNull(graphql.Boolean),
			Args: graphql.FieldConfigArgument{
				"email": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: r.forgotPassword,
		},
		"changePassword": &graphql.Field{
			Type: graphql.NewNonNull(userResponseType),
			Args: graphql.FieldConfigArgument{
				"token":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"newPassword": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: r.changePassword,
		},
	}
}

func (r *UserResolver) me(p graphql.ResolveParams) (any, error) {
	id, ok := FromContext(p.Context).UserID()
	if !ok {
		return nil, nil
	}
	u, err := r.store.UserByID(p.Context, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserResolver) register(p graphql.ResolveParams) (any, error) {
	opts := objectArg(p.Args, "options")
	in := auth.RegisterInput{
		Username: stringArg(opts, "username"),
		Email:    stringArg(opts, "email"),
		Password: stringArg(opts, "password"),
	}
	if errs := auth.ValidateRegister(in); errs != nil {
		return fieldErrors(errs...), nil
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u, err := r.store.CreateUser(p.Context, in.Username, in.Email, hash)
	if errors.Is(err, store.ErrDuplicate) {
		return fieldErrors(auth.FieldError{Field: "username", Message: "username already taken"}), nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.logIn(p.Context, u); err != nil {
		return nil, err
	}
	return &UserResponse{User: u}, nil
}

func (r *UserResolver) login(p graphql.ResolveParams) (any, error) {
	usernameOrEmail := stringArg(p.Args, "usernameOrEmail")
	password := stringArg(p.Args, "password")

	var (
		u   *domain.User
		err error
	)
	if strings.Contains(usernameOrEmail, "@") {
		u, err = r.store.UserByEmail(p.Context, usernameOrEmail)
	} else {
		u, err = r.store.UserByUsername(p.Context, usernameOrEmail)
	}
	if errors.Is(err, store.ErrNotFound) {
		return fieldErrors(auth.FieldError{Field: "usernameOrEmail", Message: "that username doesn't exist"}), nil
	}
	if err != nil {
		return nil, err
	}

	ok, err := auth.CheckPassword(u.Password, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return fieldErrors(auth.FieldError{Field: "password", Message: "incorrect password"}), nil
	}

	if err := r.logIn(p.Context, u); err != nil {
		return nil, err
	}
	return &UserResponse{User: u}, nil
}

// logout destroys the session and clears the cookie. It reports false
// instead of failing when the store cannot be reached.
func (r *UserResolver) logout(p graphql.ResolveParams) (any, error) {
	rc := FromContext(p.Context)
	if rc == nil || rc.Session == nil {
		return false, nil
	}
	if err := session.Destroy(rc.Request, rc.Writer, rc.Session); err != nil {
		r.logger.ErrorContext(p.Context, "destroying session failed", "error", err)
		return false, nil
	}
	return true, nil
}

// forgotPassword always reports true so that callers cannot probe for
// registered addresses.
func (r *UserResolver) forgotPassword(p graphql.ResolveParams) (any, error) {
	email := stringArg(p.Args, "email")

	u, err := r.store.UserByEmail(p.Context, email)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return nil, err
	}

	tokens, err := r.tokens(p.Context)
	if err != nil {
		return nil, err
	}
	token, err := tokens.Create(p.Context, u.ID)
	if err != nil {
		return nil, err
	}

	link := r.resetBase + url.PathEscape(token)
	body := fmt.Sprintf(`<a href="%s">reset password</a>`, html.EscapeString(link))
	if err := r.mailer.Send(p.Context, u.Email, "change password", body); err != nil {
		return nil, err
	}
	return true, nil
}

func (r *UserResolver) changePassword(p graphql.ResolveParams) (any, error) {
	token := stringArg(p.Args, "token")
	newPassword := stringArg(p.Args, "newPassword")

	if errs := auth.ValidatePassword("newPassword", newPassword); errs != nil {
		return fieldErrors(errs...), nil
	}

	tokens, err := r.tokens(p.Context)
	if err != nil {
		return nil, err
	}
	userID, err := tokens.Lookup(p.Context, token)
	if errors.Is(err, auth.ErrTokenNotFound) {
		return fieldErrors(auth.FieldError{Field: "token", Message: "token expired"}), nil
	}
	if err != nil {
		return nil, err
	}

	u, err := r.store.UserByID(p.Context, userID)
	if errors.Is(err, store.ErrNotFound) {
		return fieldErrors(auth.FieldError{Field: "token", Message: "user no longer exists"}), nil
	}
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := r.store.UpdatePassword(p.Context, u.ID, hash); err != nil {
		return nil, err
	}
	u.Password = hash

	if err := tokens.Delete(p.Context, token); err != nil {
		return nil, err
	}
	if err := r.logIn(p.Context, u); err != nil {
		return nil, err
	}
	return &UserResponse{User: u}, nil
}

// tokens uses the request's Redis handle.
func (r *UserResolver) tokens(ctx context.Context) (*auth.TokenStore, error) {
	rc := FromContext(ctx)
	if rc == nil || rc.Redis == nil {
		return nil, errors.New("redis unavailable")
	}
	return auth.NewTokenStore(rc.Redis), nil
}

func (r *UserResolver) logIn(ctx context.Context, u *domain.User) error {
	rc := FromContext(ctx)
	if rc == nil || rc.Session == nil {
		return errNoSession
	}
	session.SetUserID(rc.Session, u.ID)
	if err := rc.saveSession(); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}
