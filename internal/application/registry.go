package application

import (
	"context"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"jira-mcp-server/internal/domain"
	"jira-mcp-server/internal/infrastructure"
)

// HandlerFunc executes one tool against an authenticated Jira client. The
// arguments have already passed schema validation, so handlers may trust the
// declared shapes.
type HandlerFunc func(ctx context.Context, client *infrastructure.JiraClient, args map[string]interface{}) (*domain.ToolResponse, error)

// ToolDescriptor pairs a tool definition with its compiled input schema and
// handler. Registered once at startup; immutable thereafter.
type ToolDescriptor struct {
	Definition domain.ToolDefinition
	Handler    HandlerFunc
	schema     *jsonschema.Schema
}

// ClientFactory builds a Jira gateway from resolved credentials. Injected so
// tests can count upstream construction or point at a mock server.
type ClientFactory func(creds domain.Credentials) *infrastructure.JiraClient

// DefaultClientFactory builds a gateway whose HTTP client injects Basic auth
// from the resolved credentials.
func DefaultClientFactory(creds domain.Credentials) *infrastructure.JiraClient {
	return infrastructure.NewJiraClient(creds.Host, domain.NewAuthenticatedClient(creds))
}

// Registry maps tool names to descriptors and owns the dispatch pipeline:
// lookup, schema validation, credential resolution, handler invocation, and
// envelope conversion of every failure path.
type Registry struct {
	tools    map[string]*ToolDescriptor
	order    []string
	defaults domain.DefaultsProvider
	factory  ClientFactory
	logger   *StructuredLogger
}

// NewRegistry creates an empty registry with the given credential defaults
// and client factory.
func NewRegistry(defaults domain.DefaultsProvider, factory ClientFactory, logger *StructuredLogger) *Registry {
	if logger == nil {
		logger = NewStructuredLogger()
	}
	return &Registry{
		tools:    make(map[string]*ToolDescriptor),
		defaults: defaults,
		factory:  factory,
		logger:   logger,
	}
}

// Register compiles the tool's input schema and adds the descriptor.
// Returns an error if the name is already taken or the schema does not
// compile; both indicate a programming error at startup.
func (r *Registry) Register(def domain.ToolDefinition, handler HandlerFunc) error {
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %s is already registered", def.Name)
	}

	schema, err := jsonschema.CompileString(def.Name+".json", string(def.InputSchema))
	if err != nil {
		return fmt.Errorf("invalid input schema for tool %s: %w", def.Name, err)
	}

	r.tools[def.Name] = &ToolDescriptor{
		Definition: def,
		Handler:    handler,
		schema:     schema,
	}
	r.order = append(r.order, def.Name)
	return nil
}

// ListTools returns the registered tool definitions in registration order.
func (r *Registry) ListTools() []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// Dispatch runs one tool call end to end and always terminates in a
// ToolResponse envelope. Unknown tool, schema failure, credential failure,
// handler error, and handler panic all surface as {isError: true}; nothing
// propagates to the protocol loop, which must survive each individual tool
// failure.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]interface{}) (resp *domain.ToolResponse) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.LogError("tool handler panicked", fmt.Errorf("%v", rec), map[string]interface{}{
				"tool": name,
			})
			resp = domain.NewErrorResponse(&domain.Error{
				Code:    domain.InternalError,
				Message: fmt.Sprintf("tool %s failed: %v", name, rec),
			})
		}
	}()

	if args == nil {
		args = make(map[string]interface{})
	}

	desc, exists := r.tools[name]
	if !exists {
		return domain.NewErrorResponse(&domain.Error{
			Code:    domain.MethodNotFound,
			Message: fmt.Sprintf("unknown tool: %s", name),
		})
	}

	// Reject malformed input before any credential resolution or network
	// access.
	if err := validateArgs(desc, args); err != nil {
		return domain.NewErrorResponse(err)
	}

	creds, err := domain.ResolveCredentials(args, r.defaults.DefaultCredentials())
	if err != nil {
		return domain.NewErrorResponse(err)
	}

	result, err := desc.Handler(ctx, r.factory(creds), args)
	if err != nil {
		r.logger.LogError("tool execution failed", err, map[string]interface{}{
			"tool": name,
		})
		return domain.NewErrorResponse(err)
	}
	return result
}

// validateArgs checks the raw arguments against the tool's compiled schema
// and converts a failure into an InvalidParams error carrying the most
// specific validation message.
func validateArgs(desc *ToolDescriptor, args map[string]interface{}) error {
	err := desc.schema.Validate(args)
	if err == nil {
		return nil
	}

	if ve, ok := err.(*jsonschema.ValidationError); ok {
		leaf := firstLeafValidationError(ve)
		loc := leaf.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		msg := leaf.Message
		if msg == "" {
			msg = leaf.Error()
		}
		return &domain.Error{
			Code:    domain.InvalidParams,
			Message: fmt.Sprintf("invalid arguments for %s at %s: %s", desc.Definition.Name, loc, msg),
		}
	}

	return &domain.Error{
		Code:    domain.InvalidParams,
		Message: fmt.Sprintf("invalid arguments for %s: %v", desc.Definition.Name, err),
	}
}

// firstLeafValidationError descends to the most specific cause of a
// validation failure.
func firstLeafValidationError(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return err
	}
	for _, c := range err.Causes {
		if leaf := firstLeafValidationError(c); leaf != nil {
			return leaf
		}
	}
	return err
}
