// Package revision parses and resolves revision expressions such as
// "HEAD^", "main~3", and abbreviated object ids against a ref store and
// object database.
package revision

// Expr is a parsed revision expression: one of Ref, Parent, or Ancestor.
type Expr interface {
	isExpr()
}

// Ref names a branch, an OID (full or abbreviated), or the "@" alias for
// HEAD. Resolution, not parsing, decides which of these it turns out to be.
type Ref struct {
	Name string
}

// Parent is the first-parent operator ("^"): resolve Inner, then take the
// first parent of the resulting commit.
type Parent struct {
	Inner Expr
}

// Ancestor is the N-th-generation ancestor operator ("~N"): resolve Inner,
// then follow N first-parent links.
type Ancestor struct {
	Inner Expr
	N     int
}

func (Ref) isExpr()      {}
func (Parent) isExpr()   {}
func (Ancestor) isExpr() {}
