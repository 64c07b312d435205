package replacers

import (
	"fmt"
	"strings"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	"github.com/gnolang/jdowngrader/internal/rewrite"
	tt "github.com/gnolang/jdowngrader/internal/types"
)

const (
	concatFactory = "java/lang/invoke/StringConcatFactory"

	recipeArg   = '\u0001'
	recipeConst = '\u0002'
)

// lowerStringConcat replaces every StringConcatFactory call site with an
// equivalent StringBuilder chain.
func lowerStringConcat(c *cf.Class, _ tt.DepCollector, res *tt.Result) error {
	for _, m := range c.Methods {
		if m.Code == nil {
			continue
		}
		var (
			out     []cf.Insn
			changed bool
			base    = -1
		)
		for _, in := range m.Code.Insns {
			indy, ok := in.(*cf.InvokeDynamicInsn)
			if !ok || indy.Bootstrap.Owner != concatFactory {
				out = append(out, in)
				continue
			}
			if base < 0 {
				base = rewrite.FreeLocal(m)
			}
			repl, err := concatChain(indy, base)
			if err != nil {
				return fmt.Errorf("%s.%s%s: %w", c.Name, m.Name, m.Desc, err)
			}
			out = append(out, repl...)
			changed = true
			res.Replaced++
		}
		if changed {
			m.Code.Insns = out
		}
	}
	return nil
}

func concatChain(indy *cf.InvokeDynamicInsn, base int) ([]cf.Insn, error) {
	args := cf.ArgumentTypes(indy.Desc)
	var (
		recipe string
		consts []any
	)
	switch indy.Bootstrap.Name {
	case "makeConcat":
		recipe = strings.Repeat(string(recipeArg), len(args))
	case "makeConcatWithConstants":
		if len(indy.Args) == 0 {
			return nil, malformedConcat(indy, "missing recipe")
		}
		s, ok := indy.Args[0].(string)
		if !ok {
			return nil, malformedConcat(indy, "recipe is not a string")
		}
		recipe, consts = s, indy.Args[1:]
	default:
		return nil, malformedConcat(indy, "unknown bootstrap "+indy.Bootstrap.Name)
	}

	slots := make([]int, len(args))
	next := base
	for i, t := range args {
		slots[i] = next
		next += t.Size()
	}

	var out []cf.Insn
	for i := len(args) - 1; i >= 0; i-- {
		out = append(out, cf.VarOp(args[i].Opcode(cf.ISTORE), slots[i]))
	}
	out = append(out, newInit(sbClass)...)

	var text strings.Builder
	flush := func() {
		if text.Len() == 0 {
			return
		}
		out = append(out, cf.Ldc(text.String()), invokeVirtual(sbClass, "append", appendDesc(stringDesc)))
		text.Reset()
	}
	argIdx, constIdx := 0, 0
	for _, r := range recipe {
		switch r {
		case recipeArg:
			if argIdx >= len(args) {
				return nil, malformedConcat(indy, "recipe references more arguments than the call passes")
			}
			flush()
			t := args[argIdx]
			out = append(out, cf.VarOp(t.Opcode(cf.ILOAD), slots[argIdx]), appendValue(t))
			argIdx++
		case recipeConst:
			if constIdx >= len(consts) {
				return nil, malformedConcat(indy, "recipe references a missing constant")
			}
			k := consts[constIdx]
			constIdx++
			if s, ok := k.(string); ok {
				text.WriteString(s)
				continue
			}
			flush()
			out = append(out, cf.Ldc(k), appendValue(constantType(k)))
		default:
			text.WriteRune(r)
		}
	}
	if argIdx != len(args) {
		return nil, malformedConcat(indy, "recipe does not consume every argument")
	}
	flush()
	return append(out, invokeVirtual(sbClass, "toString", "()Ljava/lang/String;")), nil
}

func constantType(v any) cf.Type {
	switch v.(type) {
	case int32:
		return cf.IntType
	case int64:
		return cf.LongType
	case float32:
		return cf.FloatType
	case float64:
		return cf.DoubleType
	case string:
		return cf.ObjectType(stringClass)
	}
	return cf.ObjectType("java/lang/Object")
}

func malformedConcat(indy *cf.InvokeDynamicInsn, reason string) error {
	return fmt.Errorf("%w: string concatenation %s%s: %s", rewrite.ErrRulePrecondition, indy.Name, indy.Desc, reason)
}
