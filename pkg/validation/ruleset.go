package validation

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var stringFormatNames = map[StringFormat]string{
	FormatNone:              "",
	FormatEmail:             "email",
	FormatHostname:          "hostname",
	FormatIP:                "ip",
	FormatIPv4:              "ipv4",
	FormatIPv6:              "ipv6",
	FormatURI:               "uri",
	FormatURIRef:            "uri_ref",
	FormatAddress:           "address",
	FormatUUID:              "uuid",
	FormatTUUID:             "tuuid",
	FormatIPWithPrefixLen:   "ip_with_prefixlen",
	FormatIPv4WithPrefixLen: "ipv4_with_prefixlen",
	FormatIPv6WithPrefixLen: "ipv6_with_prefixlen",
	FormatIPPrefix:          "ip_prefix",
	FormatIPv4Prefix:        "ipv4_prefix",
	FormatIPv6Prefix:        "ipv6_prefix",
	FormatHostAndPort:       "host_and_port",
	FormatHTTPHeaderName:    "http_header_name",
	FormatHTTPHeaderValue:   "http_header_value",
}

var bytesFormatNames = map[BytesFormat]string{
	BytesFormatNone: "",
	BytesFormatIP:   "ip",
	BytesFormatIPv4: "ipv4",
	BytesFormatIPv6: "ipv6",
}

func (f StringFormat) String() string {
	if name, ok := stringFormatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("StringFormat(%d)", int(f))
}

func (f BytesFormat) String() string {
	if name, ok := bytesFormatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("BytesFormat(%d)", int(f))
}

func lookupName[K comparable](names map[K]string, s string) (K, bool) {
	for k, name := range names {
		if name == s {
			return k, true
		}
	}
	var zero K
	return zero, false
}

// UnmarshalYAML accepts the lower-case mode names, optionally prefixed with
// IGNORE_ in upper case
func (i *Ignore) UnmarshalYAML(node *yaml.Node) error {
	s := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(node.Value, "IGNORE_"), "ignore_"))
	for n, name := range ignoreNames {
		if s == name {
			*i = Ignore(n)
			return nil
		}
	}
	return fmt.Errorf("line %d: unknown ignore mode %q", node.Line, node.Value)
}

// MarshalYAML writes the mode name
func (i Ignore) MarshalYAML() (interface{}, error) {
	return i.String(), nil
}

// UnmarshalYAML accepts a format name such as "email" or "ipv4_prefix"
func (f *StringFormat) UnmarshalYAML(node *yaml.Node) error {
	v, ok := lookupName(stringFormatNames, strings.ToLower(node.Value))
	if !ok {
		return fmt.Errorf("line %d: unknown string format %q", node.Line, node.Value)
	}
	*f = v
	return nil
}

// MarshalYAML writes the format name
func (f StringFormat) MarshalYAML() (interface{}, error) {
	return f.String(), nil
}

// UnmarshalYAML accepts "ip", "ipv4" or "ipv6"
func (f *BytesFormat) UnmarshalYAML(node *yaml.Node) error {
	v, ok := lookupName(bytesFormatNames, strings.ToLower(node.Value))
	if !ok {
		return fmt.Errorf("line %d: unknown bytes format %q", node.Line, node.Value)
	}
	*f = v
	return nil
}

// MarshalYAML writes the format name
func (f BytesFormat) MarshalYAML() (interface{}, error) {
	return f.String(), nil
}

// LoadRuleSet decodes a YAML rule file. Unknown keys are rejected.
//
//	messages:
//	  acme.v1.User:
//	    fields:
//	      email:
//	        string:
//	          required: true
//	          format: email
//	    oneofs:
//	      contact:
//	        required: true
func LoadRuleSet(r io.Reader) (*RuleSet, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	rs := &RuleSet{}
	if err := dec.Decode(rs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode rule set: %w", err)
	}
	if rs.Messages == nil {
		rs.Messages = make(map[string]MessageTypeRules)
	}
	return rs, nil
}

// LoadRuleSetFile reads a YAML rule file from disk
func LoadRuleSetFile(path string) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule file: %w", err)
	}
	defer f.Close()

	rs, err := LoadRuleSet(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Merge copies the message rules of other into rs, replacing existing entries
func (rs *RuleSet) Merge(other *RuleSet) {
	if other == nil {
		return
	}
	if rs.Messages == nil {
		rs.Messages = make(map[string]MessageTypeRules, len(other.Messages))
	}
	for name, r := range other.Messages {
		rs.Messages[name] = r
	}
}
