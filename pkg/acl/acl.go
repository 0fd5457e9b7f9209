// Package acl parses and renders access-control-list XML. Each provider
// speaks its own dialect; the differences (document tags, grantee element,
// permission tokens) come out of the profile's ACL vocabulary table, so one
// codec serves both.
package acl

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/objtools/storctl/pkg/provider"
)

// InvalidACLError reports a payload that failed to parse or validate. The
// bare message (no prefix) is what reaches the failure translator.
type InvalidACLError struct {
	Message string
}

func (e *InvalidACLError) Error() string {
	return e.Message
}

// Grantee identifies who a grant applies to. Type carries the dialect's
// grantee kind (CanonicalUser, Group, UserById, AllUsers, ...); the other
// fields are populated as the document provides them.
type Grantee struct {
	Type   string
	ID     string
	Name   string
	Email  string
	Domain string
	URI    string
}

// Grant pairs a grantee with one permission token.
type Grant struct {
	Grantee    Grantee
	Permission string
}

// Document is a parsed ACL, still tied to the vocabulary it was read with.
type Document struct {
	Vocabulary provider.ACLVocabulary
	Owner      Grantee
	Grants     []Grant
}

// node is a generic XML tree for dialect-driven interpretation.
type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []node     `xml:",any"`
	Text    string     `xml:",chardata"`
}

func (n *node) child(local string) *node {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == local {
			return &n.Nodes[i]
		}
	}
	return nil
}

func (n *node) text() string {
	return strings.TrimSpace(n.Text)
}

// Parse reads an ACL document in the dialect the vocabulary describes.
func Parse(vocab provider.ACLVocabulary, text string) (*Document, error) {
	var tree node
	if err := xml.Unmarshal([]byte(text), &tree); err != nil {
		if syn, ok := err.(*xml.SyntaxError); ok {
			return nil, &InvalidACLError{
				Message: fmt.Sprintf("malformed ACL XML at line %d: %s", syn.Line, syn.Msg),
			}
		}
		return nil, &InvalidACLError{Message: fmt.Sprintf("malformed ACL XML: %v", err)}
	}
	if tree.XMLName.Local != vocab.RootTag {
		return nil, &InvalidACLError{
			Message: fmt.Sprintf("expected <%s> document for %s, found <%s>",
				vocab.RootTag, vocab.Class, tree.XMLName.Local),
		}
	}

	doc := &Document{Vocabulary: vocab}
	if owner := tree.child("Owner"); owner != nil {
		doc.Owner = parseGrantee(owner)
	}
	entries := tree.child(vocab.EntriesTag)
	if entries == nil {
		return doc, nil
	}
	for i := range entries.Nodes {
		entry := &entries.Nodes[i]
		if entry.XMLName.Local != vocab.EntryTag {
			continue
		}
		grant, err := parseGrant(vocab, entry)
		if err != nil {
			return nil, err
		}
		doc.Grants = append(doc.Grants, grant)
	}
	return doc, nil
}

func parseGrant(vocab provider.ACLVocabulary, entry *node) (Grant, error) {
	grantee := entry.child(vocab.GranteeTag)
	if grantee == nil {
		return Grant{}, &InvalidACLError{
			Message: fmt.Sprintf("<%s> entry missing its <%s> element", vocab.EntryTag, vocab.GranteeTag),
		}
	}
	perm := entry.child("Permission")
	if perm == nil {
		return Grant{}, &InvalidACLError{
			Message: fmt.Sprintf("<%s> entry missing its <Permission> element", vocab.EntryTag),
		}
	}
	token := perm.text()
	if !validPermission(vocab, token) {
		return Grant{}, &InvalidACLError{
			Message: fmt.Sprintf("invalid permission %q (valid for %s: %s)",
				token, vocab.Class, strings.Join(vocab.Permissions, ", ")),
		}
	}
	return Grant{Grantee: parseGrantee(grantee), Permission: token}, nil
}

func parseGrantee(n *node) Grantee {
	g := Grantee{}
	for _, attr := range n.Attrs {
		if attr.Name.Local == "type" {
			g.Type = attr.Value
		}
	}
	for i := range n.Nodes {
		c := &n.Nodes[i]
		switch c.XMLName.Local {
		case "ID":
			g.ID = c.text()
		case "DisplayName", "Name":
			g.Name = c.text()
		case "EmailAddress":
			g.Email = c.text()
		case "Domain":
			g.Domain = c.text()
		case "URI":
			g.URI = c.text()
		}
	}
	return g
}

func validPermission(vocab provider.ACLVocabulary, token string) bool {
	for _, p := range vocab.Permissions {
		if p == token {
			return true
		}
	}
	return false
}

const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

// Render writes the document back out in its dialect, compact.
func (d *Document) Render() string {
	return d.render("", "")
}

// RenderIndent pretty-prints the document for display.
func (d *Document) RenderIndent() string {
	return d.render("", "  ")
}

func (d *Document) render(prefix, indent string) string {
	var buf bytes.Buffer
	vocab := d.Vocabulary
	nl := ""
	if indent != "" {
		nl = "\n"
	}
	in := func(depth int) string {
		return prefix + strings.Repeat(indent, depth)
	}

	fmt.Fprintf(&buf, "%s<%s>%s", in(0), vocab.RootTag, nl)
	if d.Owner != (Grantee{}) {
		fmt.Fprintf(&buf, "%s<Owner>%s", in(1), nl)
		writeGranteeFields(&buf, d.Owner, in(2), nl)
		fmt.Fprintf(&buf, "%s</Owner>%s", in(1), nl)
	}
	fmt.Fprintf(&buf, "%s<%s>%s", in(1), vocab.EntriesTag, nl)
	for _, grant := range d.Grants {
		fmt.Fprintf(&buf, "%s<%s>%s", in(2), vocab.EntryTag, nl)
		buf.WriteString(in(3))
		buf.WriteString("<" + vocab.GranteeTag)
		if strings.HasPrefix(vocab.GranteeTypeAttr, "xsi:") {
			fmt.Fprintf(&buf, " xmlns:xsi=%q", xsiNamespace)
		}
		if grant.Grantee.Type != "" {
			fmt.Fprintf(&buf, " %s=%q", vocab.GranteeTypeAttr, grant.Grantee.Type)
		}
		buf.WriteString(">" + nl)
		writeGranteeFields(&buf, grant.Grantee, in(4), nl)
		fmt.Fprintf(&buf, "%s</%s>%s", in(3), vocab.GranteeTag, nl)
		fmt.Fprintf(&buf, "%s<Permission>%s</Permission>%s", in(3), escape(grant.Permission), nl)
		fmt.Fprintf(&buf, "%s</%s>%s", in(2), vocab.EntryTag, nl)
	}
	fmt.Fprintf(&buf, "%s</%s>%s", in(1), vocab.EntriesTag, nl)
	fmt.Fprintf(&buf, "%s</%s>%s", in(0), vocab.RootTag, nl)
	return buf.String()
}

func writeGranteeFields(buf *bytes.Buffer, g Grantee, pad, nl string) {
	field := func(tag, val string) {
		if val != "" {
			fmt.Fprintf(buf, "%s<%s>%s</%s>%s", pad, tag, escape(val), tag, nl)
		}
	}
	field("ID", g.ID)
	field("DisplayName", g.Name)
	field("EmailAddress", g.Email)
	field("Domain", g.Domain)
	field("URI", g.URI)
}

func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// CannedDocument materializes a canned ACL name into representative grants,
// the way backends report canned settings when the ACL is read back.
func CannedDocument(vocab provider.ACLVocabulary, canned, ownerID string) *Document {
	owner := Grantee{Type: userType(vocab), ID: ownerID}
	doc := &Document{
		Vocabulary: vocab,
		Owner:      owner,
		Grants:     []Grant{{Grantee: owner, Permission: "FULL_CONTROL"}},
	}
	switch canned {
	case "public-read":
		doc.Grants = append(doc.Grants, Grant{Grantee: allUsers(vocab), Permission: "READ"})
	case "public-read-write":
		doc.Grants = append(doc.Grants,
			Grant{Grantee: allUsers(vocab), Permission: "READ"},
			Grant{Grantee: allUsers(vocab), Permission: "WRITE"})
	case "authenticated-read":
		doc.Grants = append(doc.Grants, Grant{Grantee: allAuthenticatedUsers(vocab), Permission: "READ"})
	}
	return doc
}

func userType(vocab provider.ACLVocabulary) string {
	if vocab.GranteeTag == "Scope" {
		return "UserById"
	}
	return "CanonicalUser"
}

func allUsers(vocab provider.ACLVocabulary) Grantee {
	if vocab.GranteeTag == "Scope" {
		return Grantee{Type: "AllUsers"}
	}
	return Grantee{Type: "Group", URI: "http://acs.amazonaws.com/groups/global/AllUsers"}
}

func allAuthenticatedUsers(vocab provider.ACLVocabulary) Grantee {
	if vocab.GranteeTag == "Scope" {
		return Grantee{Type: "AllAuthenticatedUsers"}
	}
	return Grantee{Type: "Group", URI: "http://acs.amazonaws.com/groups/global/AuthenticatedUsers"}
}

// CheckCodec round-trips a probe document and reports a broken codec. The
// dispatch layer runs this before commands that decode ACL XML so they fail
// up front with a clear message instead of deep inside a handler.
func CheckCodec(vocab provider.ACLVocabulary) error {
	probe := CannedDocument(vocab, "public-read", "codec-probe")
	parsed, err := Parse(vocab, probe.Render())
	if err != nil {
		return fmt.Errorf("XML ACL codec failed its self-check for %s: %v", vocab.Class, err)
	}
	if len(parsed.Grants) != len(probe.Grants) || parsed.Owner.ID != probe.Owner.ID {
		return fmt.Errorf("XML ACL codec failed its self-check for %s: round trip lost grants", vocab.Class)
	}
	return nil
}
