// Package protosource compiles .proto sources with protocompile and reads
// validation rules from comment directives.
//
// A directive is a comment line of the form
//
//	// @protoguard:<option>:<value>
//
// placed in the leading comment of a field, oneof or message. Field options
// are dotted paths into the YAML rule layout and values are YAML scalars or
// flow collections:
//
//	message User {
//	  // @protoguard:string.min_len:1
//	  // @protoguard:string.format:email
//	  string email = 1;
//
//	  // @protoguard:repeated.max_items:10
//	  // @protoguard:repeated.items.string.pattern:"^[a-z]+$"
//	  repeated string tags = 2;
//
//	  // @protoguard:required:true
//	  oneof contact {
//	    string phone = 3;
//	    string fax = 4;
//	  }
//	}
//
// Messages accept cel directives holding a flow map with id, message and
// expression keys. Quote values YAML would otherwise read as a collection.
package protosource
