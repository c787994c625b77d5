package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/armada-rental/rental-service/internal/api/dto"
	"github.com/armada-rental/rental-service/internal/service"
)

func runAssignRole(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("assign-role", env)
	userID := fs.String("user", "", "User id")
	role := fs.String("role", "", "Role name, e.g. \"Staff Trips\"")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" || *role == "" {
		return fmt.Errorf("%w: -user and -role are required", ErrUsage)
	}
	var out envelope[dto.UserResponse]
	path := "/admin/users/" + url.PathEscape(*userID) + "/role"
	if err := env.API.Call(ctx, http.MethodPut, path, nil, dto.AssignRoleRequest{Role: *role}, &out); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return writef(env.Out, "%s <%s> is now %s\n", out.Data.Name, out.Data.Email, out.Data.Role)
}

func runMessage(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("message", env)
	var req dto.SendMessageRequest
	fs.StringVar(&req.Target, "to", "", "Phone number")
	fs.StringVar(&req.Message, "text", "", "Message body")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if req.Target == "" || req.Message == "" {
		return fmt.Errorf("%w: -to and -text are required", ErrUsage)
	}
	var out envelope[service.MessageReceipt]
	if err := env.API.Call(ctx, http.MethodPost, "/messages/send", nil, req, &out); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return writef(env.Out, "message queued for %s\n", out.Data.Target)
}

func runDispatch(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("dispatch", env)
	var req dto.DispatchRequest
	var payload string
	fs.StringVar(&req.Event, "event", "", "Event type, e.g. vehicle.maintenance_due")
	fs.StringVar(&req.Subject, "subject", "", "Subject id")
	fs.StringVar(&payload, "payload", "", "JSON object payload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if req.Event == "" {
		return fmt.Errorf("%w: -event is required", ErrUsage)
	}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req.Payload); err != nil {
			return fmt.Errorf("%w: -payload must be a JSON object: %v", ErrUsage, err)
		}
	}
	var out envelope[struct {
		ID string `json:"id"`
	}]
	if err := env.API.Call(ctx, http.MethodPost, "/webhooks/dispatch", nil, req, &out); err != nil {
		return fmt.Errorf("dispatch event: %w", err)
	}
	return writef(env.Out, "event %s accepted\n", out.Data.ID)
}
