package protosource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/platinummonkey/protoguard/pkg/validation"
)

const commonProto = `syntax = "proto3";
package acme.common;

message Money {
  // @protoguard:string.len:3
  string currency = 1;
  int64 units = 2;
}
`

const orderProto = `syntax = "proto3";
package acme.orders;

import "acme/common/money.proto";
import "google/protobuf/timestamp.proto";

// An order placed by a customer.
// @protoguard:cel:{id: order.total_set, message: total is required, expression: "has(this.total)"}
message Order {
  // @protoguard:string.min_len:1
  // @protoguard:string.max_len:32
  string id = 1;

  acme.common.Money total = 2;

  /*
   * @protoguard:repeated.max_items:3
   * @protoguard:repeated.items.string.pattern:"^[a-z]+$"
   */
  repeated string tags = 3;

  // @protoguard:required:true
  oneof customer {
    // @protoguard:string.format:email
    string email = 4;
    string account_id = 5;
  }

  google.protobuf.Timestamp placed_at = 6;

  message Line {
    // @protoguard:int32.gt:0
    int32 quantity = 1;
  }
}
`

func compileOrders(t *testing.T) *Result {
	t.Helper()
	c := NewCompiler(WithSources(map[string]string{
		"acme/common/money.proto": commonProto,
		"acme/orders/order.proto": orderProto,
	}))
	res, err := c.Compile(context.Background(), "acme/orders/order.proto")
	require.NoError(t, err)
	return res
}

func TestCompiler_Compile(t *testing.T) {
	res := compileOrders(t)

	require.Len(t, res.Files, 1)
	assert.Equal(t, "acme/orders/order.proto", res.Files[0].Path())

	order, ok := res.Rules.Message("acme.orders.Order")
	require.True(t, ok)
	require.Len(t, order.CEL, 1)
	assert.Equal(t, "order.total_set", order.CEL[0].ID)
	assert.Equal(t, "total is required", order.CEL[0].Message)
	assert.Equal(t, "has(this.total)", order.CEL[0].Expression)
	assert.True(t, order.Oneofs["customer"].Required)

	id := order.Fields["id"]
	require.NotNil(t, id.String)
	assert.Equal(t, uint64(1), *id.String.MinLen)
	assert.Equal(t, uint64(32), *id.String.MaxLen)

	tags := order.Fields["tags"]
	require.NotNil(t, tags.Repeated)
	assert.Equal(t, uint64(3), *tags.Repeated.MaxItems)
	assert.Equal(t, "^[a-z]+$", tags.Repeated.Items.String.Pattern)

	assert.Equal(t, validation.FormatEmail, order.Fields["email"].String.Format)
	assert.NotContains(t, order.Fields, "total")

	line, ok := res.Rules.Message("acme.orders.Order.Line")
	require.True(t, ok)
	assert.Equal(t, int32(0), *line.Fields["quantity"].Int32.Gt)

	money, ok := res.Rules.Message("acme.common.Money")
	require.True(t, ok, "rules of imported files are collected")
	assert.Equal(t, uint64(3), *money.Fields["currency"].String.Len)
}

func TestCompiler_RulesValidate(t *testing.T) {
	res := compileOrders(t)
	md := res.Files[0].Messages().ByName("Order")
	require.NotNil(t, md)

	v, err := validation.New(md, res.Rules)
	require.NoError(t, err)

	msg := dynamicpb.NewMessage(md)
	require.NoError(t, protojson.Unmarshal([]byte(`{"id":"o-1","tags":["ok","Bad"],"email":"x@example.com","total":{"currency":"USD"}}`), msg))

	vs, err := v.Validate(msg)
	require.NoError(t, err)
	assert.Equal(t, []string{"string.pattern"}, vs.RuleIDs())
}

func TestResult_Lookup(t *testing.T) {
	res := compileOrders(t)

	md, err := res.FindMessage("acme.common.Money")
	require.NoError(t, err)
	assert.Equal(t, "acme/common/money.proto", md.ParentFile().Path())

	_, err = res.FindMessage("acme.orders.Order.Line")
	assert.NoError(t, err)

	_, err = res.FindMessage("acme.orders.Missing")
	assert.ErrorContains(t, err, "not found")
	assert.ErrorIs(t, err, ErrTypeNotFound)

	_, err = res.FindMessage("acme.orders.Order.id")
	assert.ErrorContains(t, err, "is not a message type")
	assert.ErrorIs(t, err, ErrTypeNotFound)

	var names []protoreflect.FullName
	for _, md := range res.MessageTypes() {
		names = append(names, md.FullName())
	}
	assert.Equal(t, []protoreflect.FullName{"acme.orders.Order", "acme.orders.Order.Line"}, names)
}

func TestCompiler_DirectiveErrors(t *testing.T) {
	src := `syntax = "proto3";
package acme.bad;

message Bad {
  // @protoguard:string.min_length:1
  string name = 1;

  // @protoguard:required:yes please
  oneof pick {
    string a = 2;
  }
}
`
	c := NewCompiler(WithSources(map[string]string{"acme/bad/bad.proto": src}))
	_, err := c.Compile(context.Background(), "acme/bad/bad.proto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme/bad/bad.proto:6: acme.bad.Bad.name")
	assert.Contains(t, err.Error(), "acme.bad.Bad.pick")
}

func TestCompiler_CompileErrors(t *testing.T) {
	c := NewCompiler(WithSources(map[string]string{"a.proto": `syntax = "proto3"; message A { Missing m = 1; }`}))

	_, err := c.Compile(context.Background(), "a.proto")
	assert.ErrorContains(t, err, "failed to compile a.proto")

	_, err = c.Compile(context.Background())
	assert.Error(t, err)

	_, err = c.Compile(context.Background(), "nope.proto")
	assert.Error(t, err)
}

func TestCompiler_ImportPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "acme/common/money.proto"), commonProto)
	writeFile(t, filepath.Join(root, "acme/orders/order.proto"), orderProto)
	writeFile(t, filepath.Join(root, "README.md"), "not a proto")

	paths, err := FindProtoFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/common/money.proto", "acme/orders/order.proto"}, paths)

	res, err := NewCompiler(WithImportPaths(root)).CompileAll(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Files, 2)

	names := make([]protoreflect.FullName, 0, len(res.Rules.Messages))
	for name := range res.Rules.Messages {
		names = append(names, protoreflect.FullName(name))
	}
	assert.ElementsMatch(t, []protoreflect.FullName{"acme.common.Money", "acme.orders.Order", "acme.orders.Order.Line"}, names)
}

func TestCompiler_SourcesShadowDisk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "acme/common/money.proto"), commonProto)

	override := `syntax = "proto3";
package acme.common;
message Money { string currency = 1; }
`
	res, err := NewCompiler(
		WithImportPaths(root),
		WithSources(map[string]string{"acme/common/money.proto": override}),
	).Compile(context.Background(), "acme/common/money.proto")
	require.NoError(t, err)
	_, ok := res.Rules.Message("acme.common.Money")
	assert.False(t, ok)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
