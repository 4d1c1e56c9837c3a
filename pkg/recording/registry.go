package recording

import (
	"fmt"
	"strings"

	"dev/bravebird/storefront-e2e/pkg/models"
	"dev/bravebird/storefront-e2e/pkg/page"
)

const (
	nodeElement = 2
	nodeText    = 3
)

// registry tracks rrweb node ids so recorded interactions can be turned
// back into locators.
type registry struct {
	nodes map[int]*nodeInfo
}

type nodeInfo struct {
	tag      string
	attrs    map[string]interface{}
	parent   int
	text     string
	children []int
}

func newRegistry() *registry {
	return &registry{nodes: make(map[int]*nodeInfo)}
}

func (r *registry) register(n models.SerializedNode, parent int) {
	attrs := n.Attributes
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	r.nodes[n.ID] = &nodeInfo{
		tag:    strings.ToLower(n.TagName),
		attrs:  attrs,
		parent: parent,
		text:   n.TextContent,
	}
	if p, ok := r.nodes[parent]; ok && parent != 0 {
		p.children = append(p.children, n.ID)
	}
	for _, child := range n.ChildNodes {
		r.register(child, n.ID)
	}
}

func (r *registry) remove(id int) {
	info, ok := r.nodes[id]
	if !ok {
		return
	}
	for _, c := range info.children {
		r.remove(c)
	}
	delete(r.nodes, id)
}

func (r *registry) setText(id int, text string) {
	if info, ok := r.nodes[id]; ok {
		info.text = text
	}
}

func (r *registry) setAttrs(id int, attrs map[string]interface{}) {
	info, ok := r.nodes[id]
	if !ok {
		return
	}
	for k, v := range attrs {
		if v == nil {
			delete(info.attrs, k)
			continue
		}
		info.attrs[k] = v
	}
}

func (r *registry) attr(info *nodeInfo, key string) (string, bool) {
	val, ok := info.attrs[key]
	if !ok {
		return "", false
	}
	switch v := val.(type) {
	case string:
		return v, v != ""
	case bool:
		return "", false
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// ownText joins the text of id's direct text children.
func (r *registry) ownText(info *nodeInfo) string {
	var parts []string
	for _, c := range info.children {
		child, ok := r.nodes[c]
		if ok && child.tag == "" && strings.TrimSpace(child.text) != "" {
			parts = append(parts, strings.TrimSpace(child.text))
		}
	}
	return strings.Join(parts, " ")
}

// locator picks the most stable way to address a node. Priority: id, name,
// data-testid, placeholder, role, type, meaningful class, aria-label, own
// text, then bare tag.
func (r *registry) locator(id int) page.Locator {
	info, ok := r.nodes[id]
	if !ok {
		return page.CSS(fmt.Sprintf("[data-rrweb-id='%d']", id))
	}
	if info.tag == "" {
		// Text and document nodes are addressed through their element.
		if _, ok := r.nodes[info.parent]; ok {
			return r.locator(info.parent)
		}
		return page.CSS(fmt.Sprintf("[data-rrweb-id='%d']", id))
	}

	if v, ok := r.attr(info, "id"); ok {
		return page.CSS("#" + v)
	}
	if v, ok := r.attr(info, "name"); ok {
		return page.CSS(fmt.Sprintf("%s[name='%s']", info.tag, v))
	}
	if v, ok := r.attr(info, "data-testid"); ok {
		return page.CSS(fmt.Sprintf("[data-testid='%s']", v))
	}
	if v, ok := r.attr(info, "placeholder"); ok {
		return page.CSS(fmt.Sprintf("%s[placeholder='%s']", info.tag, v))
	}
	if v, ok := r.attr(info, "role"); ok {
		return page.CSS(fmt.Sprintf("%s[role='%s']", info.tag, v))
	}
	if v, ok := r.attr(info, "type"); ok && info.tag == "input" {
		return page.CSS(fmt.Sprintf("%s[type='%s']", info.tag, v))
	}
	if v, ok := r.attr(info, "class"); ok {
		classes := strings.Fields(v)
		for _, cls := range classes {
			if !isUtilityClass(cls) {
				return page.CSS(fmt.Sprintf("%s.%s", info.tag, cls))
			}
		}
		if len(classes) > 0 {
			return page.CSS(fmt.Sprintf("%s.%s", info.tag, classes[0]))
		}
	}
	if v, ok := r.attr(info, "aria-label"); ok {
		return page.CSS(fmt.Sprintf("%s[aria-label='%s']", info.tag, v))
	}
	if text := r.ownText(info); text != "" {
		return page.Text(info.tag, text)
	}
	return page.CSS(info.tag)
}

func isUtilityClass(class string) bool {
	prefixes := []string{"m-", "p-", "mt-", "mb-", "ml-", "mr-", "pt-", "pb-", "pl-", "pr-",
		"w-", "h-", "flex-", "grid-", "text-", "bg-", "border-"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(class, prefix) {
			return true
		}
	}
	return false
}
