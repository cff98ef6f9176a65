package authsync

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// ActionRoutes holds the paths the remote action boundary is mounted on.
type ActionRoutes struct {
	CheckSession       string
	RefreshAuth        string
	SwitchOrganization string
	RefreshToken       string
	SignOut            string
}

func defaultActionRoutes() *ActionRoutes {
	return &ActionRoutes{
		CheckSession:       "/auth/session/check",
		RefreshAuth:        "/auth/session/refresh",
		SwitchOrganization: "/auth/organization/switch",
		RefreshToken:       "/auth/token/refresh",
		SignOut:            "/auth/signout",
	}
}

// ActionController exposes the server actions as remote calls. Requests
// carry a {"data": ...} envelope; responses are sanitized projections.
// GetAccessToken is deliberately not routed: it stays a server-side
// capability.
type ActionController struct {
	Actions      *Actions
	Logger       Logger
	Routes       *ActionRoutes
	ErrorHandler router.ErrorHandler
}

type ActionControllerOption func(*ActionController) *ActionController

func WithControllerActions(actions *Actions) ActionControllerOption {
	return func(c *ActionController) *ActionController {
		c.Actions = actions
		return c
	}
}

func WithControllerLogger(logger Logger) ActionControllerOption {
	return func(c *ActionController) *ActionController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRoutes(routes *ActionRoutes) ActionControllerOption {
	return func(c *ActionController) *ActionController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func NewActionController(opts ...ActionControllerOption) *ActionController {
	c := &ActionController{
		Logger: defLogger{},
		Routes: defaultActionRoutes(),
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.defaultErrHandler
	}

	if c.Actions == nil {
		panic("AUTHSYNC: action controller configuration: Actions is required.")
	}

	return c
}

// RegisterActionRoutes mounts the action boundary on the given router. The
// middleware must run before these routes so the context channels exist.
func RegisterActionRoutes[T any](app router.Router[T], opts ...ActionControllerOption) {
	controller := NewActionController(opts...)

	app.Post(controller.Routes.CheckSession, controller.CheckSession).
		SetName("auth.check-session.post")
	app.Post(controller.Routes.RefreshAuth, controller.RefreshAuth).
		SetName("auth.refresh.post")
	app.Post(controller.Routes.SwitchOrganization, controller.SwitchOrganization).
		SetName("auth.switch-org.post")
	app.Post(controller.Routes.RefreshToken, controller.RefreshAccessToken).
		SetName("auth.refresh-token.post")
	app.Post(controller.Routes.SignOut, controller.SignOut).
		SetName("auth.signout.post")
}

func (c *ActionController) CheckSession(ctx router.Context) error {
	ok, err := c.Actions.CheckSession(ctx.Context())
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"authenticated": ok,
	})
}

func (c *ActionController) RefreshAuth(ctx router.Context) error {
	var env struct {
		Data RefreshAuthMessage `json:"data"`
	}
	if err := ctx.Bind(&env); err != nil {
		return c.badEnvelope(ctx, err)
	}

	ca, err := c.Actions.RefreshAuth(ctx.Context(), env.Data)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, ca)
}

func (c *ActionController) SwitchOrganization(ctx router.Context) error {
	var env struct {
		Data SwitchOrganizationMessage `json:"data"`
	}
	if err := ctx.Bind(&env); err != nil {
		return c.badEnvelope(ctx, err)
	}

	if err := validateSwitchOrganization(env.Data); err != nil {
		return c.badEnvelope(ctx, err)
	}

	ca, err := c.Actions.SwitchToOrganization(ctx.Context(), env.Data)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, ca)
}

func (c *ActionController) RefreshAccessToken(ctx router.Context) error {
	token, err := c.Actions.RefreshAccessToken(ctx.Context())
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	body := map[string]any{"accessToken": nil}
	if token != "" {
		body["accessToken"] = token
	}

	return ctx.JSON(router.StatusOK, body)
}

func (c *ActionController) SignOut(ctx router.Context) error {
	var env struct {
		Data SignOutMessage `json:"data"`
	}
	if err := ctx.Bind(&env); err != nil {
		return c.badEnvelope(ctx, err)
	}

	if err := validateSignOut(env.Data); err != nil {
		return c.badEnvelope(ctx, err)
	}

	result, err := c.Actions.SignOut(ctx.Context(), env.Data)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if result.Redirect != nil {
		ctx.SetHeader("Location", result.Redirect.Location)
		return ctx.JSON(router.StatusSeeOther, result)
	}

	return ctx.JSON(router.StatusOK, result)
}

func validateSwitchOrganization(msg SwitchOrganizationMessage) error {
	return validation.ValidateStruct(&msg,
		validation.Field(&msg.OrganizationID, validation.Required, validation.Length(1, 255)),
	)
}

func validateSignOut(msg SignOutMessage) error {
	return validation.ValidateStruct(&msg,
		validation.Field(&msg.ReturnTo, is.RequestURI),
	)
}

func (c *ActionController) badEnvelope(ctx router.Context, err error) error {
	return c.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryValidation, "invalid action payload").
		WithCode(errors.CodeBadRequest))
}

func (c *ActionController) defaultErrHandler(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	c.Logger.Info(
		"Action error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	return ctx.JSON(richErr.Code, map[string]any{
		"error": richErr.Message,
		"code":  richErr.TextCode,
	})
}
