package downgrade

import (
	"sort"

	"github.com/gnolang/jdowngrader/internal"
	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/rewrite"
)

// CallSite is a call the engine would rewrite.
type CallSite struct {
	Method string `json:"method"`
	Call   string `json:"call"`
	Step   string `json:"step"`
}

// ClassInfo describes a class as the inspect command shows it.
type ClassInfo struct {
	Name        string   `json:"name"`
	Release     int      `json:"release"`
	Preview     bool     `json:"preview,omitempty"`
	Super       string   `json:"super"`
	Interfaces  []string `json:"interfaces,omitempty"`
	Record      bool     `json:"record,omitempty"`
	NestHost    string   `json:"nest_host,omitempty"`
	NestMembers []string `json:"nest_members,omitempty"`
	Permitted   []string `json:"permitted_subclasses,omitempty"`
	Fields      int      `json:"fields"`
	Methods     int      `json:"methods"`
	// Indy counts invokedynamic sites by bootstrap owner and name.
	Indy  map[string]int `json:"invokedynamic,omitempty"`
	Calls []CallSite     `json:"calls,omitempty"`
}

// Inspect parses data and lists what the engine would touch in it.
func Inspect(engine *internal.Engine, data []byte) (ClassInfo, error) {
	c, err := cf.Parse(data)
	if err != nil {
		return ClassInfo{}, err
	}
	info := ClassInfo{
		Name:        c.Name,
		Release:     c.Version.Release(),
		Preview:     c.MinorVersion == cf.PreviewMinor,
		Super:       c.Super,
		Interfaces:  c.Interfaces,
		Record:      c.Record,
		NestHost:    c.NestHost,
		NestMembers: c.NestMembers,
		Permitted:   c.PermittedSubclasses,
		Fields:      len(c.Fields),
		Methods:     len(c.Methods),
	}
	for _, m := range c.Methods {
		if m.Code == nil {
			continue
		}
		for _, in := range m.Code.Insns {
			switch i := in.(type) {
			case *cf.MethodInsn:
				if step, ok := engine.RuleFor(i.Owner, i.Name, i.Desc); ok {
					info.Calls = append(info.Calls, CallSite{
						Method: m.Name + m.Desc,
						Call:   rewrite.Key(i.Owner, i.Name, i.Desc),
						Step:   step,
					})
				}
			case *cf.InvokeDynamicInsn:
				if info.Indy == nil {
					info.Indy = make(map[string]int)
				}
				info.Indy[i.Bootstrap.Owner+"."+i.Bootstrap.Name]++
			}
		}
	}
	sort.SliceStable(info.Calls, func(a, b int) bool {
		return info.Calls[a].Call < info.Calls[b].Call
	})
	return info, nil
}
