package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/protoguard/pkg/violation"
)

func ptr[T any](v T) *T { return &v }

var (
	int32Field  = Field(1, "value", descriptorpb.FieldDescriptorProto_TYPE_INT32)
	doubleField = Field(1, "value", descriptorpb.FieldDescriptorProto_TYPE_DOUBLE)
	stringField = Field(1, "value", descriptorpb.FieldDescriptorProto_TYPE_STRING)
	bytesField  = Field(1, "value", descriptorpb.FieldDescriptorProto_TYPE_BYTES)
	msgField    = Field(1, "value", descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
)

// requireConsistency asserts that err aggregates exactly the given kinds
func requireConsistency(t *testing.T, err error, kinds ...ConsistencyKind) ConsistencyErrors {
	t.Helper()
	require.Error(t, err)
	es, ok := AsConsistencyErrors(err)
	require.True(t, ok, "expected ConsistencyErrors, got %T", err)
	require.ElementsMatch(t, kinds, es.Kinds(), "errors: %v", err)
	return es
}

// ruleIDs returns nil for no violations so tests can compare with nil
func ruleIDs(vs violation.Violations) []string {
	if len(vs) == 0 {
		return nil
	}
	return vs.RuleIDs()
}
