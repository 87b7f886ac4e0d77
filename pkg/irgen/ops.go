package irgen

import (
	"github.com/pothos/zpaqlc/pkg/ir"
	"github.com/pothos/zpaqlc/pkg/token"
)

func binOpFromToken(k token.Kind) (ir.BinOp, error) {
	switch k {
	case token.PLUS:
		return ir.BinAdd, nil
	case token.MINUS:
		return ir.BinSub, nil
	case token.STAR:
		return ir.BinMul, nil
	case token.SLASH, token.DSLASH:
		return ir.BinDiv, nil
	case token.PERCENT:
		return ir.BinMod, nil
	case token.AMPER:
		return ir.BinAnd, nil
	case token.VBAR:
		return ir.BinOr, nil
	case token.CIRCUMFLEX:
		return ir.BinXor, nil
	case token.LSHIFT:
		return ir.BinShl, nil
	case token.RSHIFT:
		return ir.BinShr, nil
	case token.EQEQUAL:
		return ir.BinEq, nil
	case token.NOTEQUAL:
		return ir.BinNe, nil
	case token.LT:
		return ir.BinLt, nil
	case token.GT:
		return ir.BinGt, nil
	case token.LE:
		return ir.BinLe, nil
	case token.GE:
		return ir.BinGe, nil
	case token.DOUBLESTAR:
		return ir.BinPow, nil
	default:
		return 0, &Error{Msg: "unsupported binary operator " + k.String()}
	}
}
