package violation

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatus converts violations into an InvalidArgument gRPC status carrying a
// BadRequest detail with one FieldViolation per violation. An empty list
// yields an OK status.
func ToStatus(vs Violations) *status.Status {
	if len(vs) == 0 {
		return status.New(codes.OK, "")
	}
	st := status.New(codes.InvalidArgument, (&ValidationError{Violations: vs}).Error())
	badRequest := &errdetails.BadRequest{
		FieldViolations: make([]*errdetails.BadRequest_FieldViolation, 0, len(vs)),
	}
	for _, v := range vs {
		badRequest.FieldViolations = append(badRequest.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       v.Field.String(),
			Description: v.Message,
		})
	}
	detailed, err := st.WithDetails(badRequest)
	if err != nil {
		return st
	}
	return detailed
}

// FromError extracts violations from an error produced by Violations.Err
func FromError(err error) (Violations, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Violations, true
	}
	return nil, false
}
