package xmlreg

import (
	"fmt"
	"sync"

	"github.com/beevik/etree"

	"github.com/platinummonkey/axle/pkg/identity"
)

// Kind distinguishes the two registry document families.
type Kind string

const (
	KindRoles Kind = "roles"
	KindUsers Kind = "users"
)

// elementRule describes the structural constraints on one element: the
// attributes it must carry, the attributes it may carry, and the child
// elements permitted beneath it.
type elementRule struct {
	required []string
	optional []string
	children map[string]*elementRule
	// text marks elements whose character content is meaningful (property
	// values); all other elements must not rely on text content.
	text bool
}

// schema is the structural schema for one (kind, version) pair.
type schema struct {
	rootTag string
	root    *elementRule
}

var (
	schemaMu      sync.Mutex
	schemasByKind map[Kind]map[string]*schema
)

// schemaFor returns the schema for a document kind and version, building the
// schema sets on first use under schemaMu.
func schemaFor(kind Kind, version string) (*schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if schemasByKind == nil {
		schemasByKind = map[Kind]map[string]*schema{
			KindRoles: {VersionRoles10: roleSchema10()},
			KindUsers: {VersionUsers10: userSchema10()},
		}
	}
	versions, ok := schemasByKind[kind]
	if !ok {
		return nil, fmt.Errorf("no schemas registered for document kind %q: %w", kind, identity.ErrUnsupportedVersion)
	}
	s, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("no %s schema for version %q: %w", kind, version, identity.ErrUnsupportedVersion)
	}
	return s, nil
}

func roleSchema10() *schema {
	property := &elementRule{required: []string{attrName}, text: true}
	roleRef := &elementRule{required: []string{attrRoleID}}
	return &schema{
		rootTag: "roleRegistry",
		root: &elementRule{
			required: []string{attrVersion},
			children: map[string]*elementRule{
				"roleList": {
					children: map[string]*elementRule{
						"role": {
							required: []string{attrID},
							optional: []string{attrParentID},
							children: map[string]*elementRule{"property": property},
						},
					},
				},
				"userList": {
					children: map[string]*elementRule{
						"userRoles": {
							required: []string{attrUsername},
							children: map[string]*elementRule{"roleRef": roleRef},
						},
					},
				},
				"groupList": {
					children: map[string]*elementRule{
						"groupRoles": {
							required: []string{attrGroup},
							children: map[string]*elementRule{"roleRef": roleRef},
						},
					},
				},
			},
		},
	}
}

func userSchema10() *schema {
	property := &elementRule{required: []string{attrName}, text: true}
	return &schema{
		rootTag: "userRegistry",
		root: &elementRule{
			required: []string{attrVersion},
			children: map[string]*elementRule{
				"users": {
					children: map[string]*elementRule{
						"user": {
							required: []string{attrName},
							optional: []string{attrPassword, attrEnabled},
							children: map[string]*elementRule{"property": property},
						},
					},
				},
				"groups": {
					children: map[string]*elementRule{
						"group": {
							required: []string{attrName},
							optional: []string{attrEnabled},
							children: map[string]*elementRule{
								"member": {required: []string{attrUsername}},
							},
						},
					},
				},
			},
		},
	}
}

// Validate checks a parsed document against the schema matching its declared
// version. It must be called before any document data is trusted when schema
// validation is enabled for the registry.
func Validate(doc *etree.Document, kind Kind) error {
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("document has no root element: %w", identity.ErrSchemaViolation)
	}
	s, err := schemaFor(kind, documentVersion(root))
	if err != nil {
		return err
	}
	if root.Tag != s.rootTag {
		return fmt.Errorf("unexpected root element %q, want %q: %w", root.Tag, s.rootTag, identity.ErrSchemaViolation)
	}
	return validateElement(root, s.root, root.Tag)
}

// ValidateBytes parses raw bytes and validates the resulting document. Used
// by store sessions to check a serialized registry before committing it.
func ValidateBytes(data []byte, kind Kind) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("parsing registry document: %v: %w", err, identity.ErrMalformedDocument)
	}
	return Validate(doc, kind)
}

func validateElement(el *etree.Element, rule *elementRule, path string) error {
	for _, attr := range rule.required {
		if el.SelectAttr(attr) == nil {
			return fmt.Errorf("%s: missing required attribute %q: %w", path, attr, identity.ErrSchemaViolation)
		}
	}
	allowed := make(map[string]struct{}, len(rule.required)+len(rule.optional))
	for _, a := range rule.required {
		allowed[a] = struct{}{}
	}
	for _, a := range rule.optional {
		allowed[a] = struct{}{}
	}
	for _, attr := range el.Attr {
		if attr.Space != "" {
			continue // namespace declarations and foreign attributes pass through
		}
		if _, ok := allowed[attr.Key]; !ok {
			return fmt.Errorf("%s: unexpected attribute %q: %w", path, attr.Key, identity.ErrSchemaViolation)
		}
	}
	if v := el.SelectAttrValue(attrEnabled, ""); v != "" && v != "true" && v != "false" {
		return fmt.Errorf("%s: enabled attribute must be true or false, got %q: %w", path, v, identity.ErrSchemaViolation)
	}
	for _, child := range el.ChildElements() {
		childRule, ok := rule.children[child.Tag]
		if !ok {
			return fmt.Errorf("%s: unexpected element %q: %w", path, child.Tag, identity.ErrSchemaViolation)
		}
		if err := validateElement(child, childRule, path+"/"+child.Tag); err != nil {
			return err
		}
	}
	return nil
}
