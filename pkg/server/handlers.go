package server

import (
	"net/http"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/platinummonkey/protoguard/pkg/httputil"
	"github.com/platinummonkey/protoguard/pkg/validation"
	"github.com/platinummonkey/protoguard/pkg/violation"
)

// TypesResponse lists the message types a server can validate
type TypesResponse struct {
	Types []string `json:"types"`
}

// ValidateResponse is the outcome of validating one document
type ValidateResponse struct {
	Type       string              `json:"type"`
	Valid      bool                `json:"valid"`
	Violations []ViolationResponse `json:"violations,omitempty"`
}

// ViolationResponse is one violation in a ValidateResponse
type ViolationResponse struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	RuleID  string `json:"rule_id"`
	Message string `json:"message"`
	ForKey  bool   `json:"for_key,omitempty"`
}

// NewValidateResponse converts violations into their wire form
func NewValidateResponse(typeName string, vs violation.Violations) ValidateResponse {
	resp := ValidateResponse{Type: typeName, Valid: vs.Valid()}
	for _, v := range vs {
		resp.Violations = append(resp.Violations, ViolationResponse{
			Field:   v.Field.String(),
			Rule:    v.Rule.String(),
			RuleID:  v.RuleID,
			Message: v.Message,
			ForKey:  v.ForKey,
		})
	}
	return resp
}

// listTypes handles GET /v1/types
func (s *Server) listTypes(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSONOrError(w, http.StatusOK, TypesResponse{Types: s.types}, "failed to encode types")
}

// validate handles POST /v1/validate/{type}
func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	typeName, ok := httputil.ParsePathString(r, "type")
	if !ok {
		httputil.WriteBadRequest(w, "message type is required")
		return
	}

	v, err := s.Validator(r.Context(), protoreflect.FullName(typeName))
	if err != nil {
		if isNotFound(err) {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		if _, ok := validation.AsConsistencyErrors(err); ok {
			s.logger.WithError(err).WithField("type", typeName).Error("Inconsistent rules")
		}
		httputil.WriteInternalError(w, err)
		return
	}

	body, ok := httputil.ReadBodyOrError(w, r)
	if !ok {
		return
	}
	msg := dynamicpb.NewMessage(v.Descriptor())
	if err := s.unmarshal.Unmarshal(body, msg); err != nil {
		httputil.WriteBadRequest(w, "failed to parse document as "+typeName+": "+err.Error())
		return
	}

	vs, err := v.Validate(msg)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSONOrError(w, http.StatusOK, NewValidateResponse(typeName, vs), "failed to encode result")
}
