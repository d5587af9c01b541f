package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/NoheilaRamdani/sae401/core/user"
)

// roleMiddleware lets through users holding one of roles.
func roleMiddleware(svc *user.Service, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if usr.HasRole(role) {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return roleMiddleware(svc, user.RoleAdmin)
}

func delegateMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return roleMiddleware(svc, user.RoleDelegate, user.RoleAdmin)
}
