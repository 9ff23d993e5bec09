package jack

import (
	"fmt"
	"io"

	"hmy.dev/n2t-toolchain/pkg/diag"
	"hmy.dev/n2t-toolchain/pkg/utils"
)

// ----------------------------------------------------------------------------
// Jack Parser

// binaryOps maps a symbol token to the ExprType it produces when found
// between two terms. '*' and '/' are full-fledged binary operators at the
// grammar level even though the Lowerer turns them into 'Math.multiply'/
// 'Math.divide' calls rather than arithmetic VM ops.
var binaryOps = map[string]ExprType{
	"+": Plus, "-": Minus, "*": Multiply, "/": Divide,
	"&": BoolAnd, "|": BoolOr, "<": LessThan, ">": GreatThan, "=": Equal,
}

// unaryOps maps a symbol token to the ExprType it produces when found at the
// start of a term. '-' here is 'Negation', distinct from the binary 'Minus'
// the same symbol produces inside an ongoing expression.
var unaryOps = map[string]ExprType{
	"-": Negation,
	"~": BoolNot,
}

// Parser is a hand-rolled recursive-descent parser: one method per grammar
// production, each consuming from a flat token stream and reporting its own
// syntax errors. It reads its entire input up front (Jack source files are
// small) and defers both tokenizing and parsing until Parse is called, so a
// read failure and a lexical failure both surface from the same place.
type Parser struct {
	tokens  []Token
	pos     int
	source  []byte
	readErr error
}

// NewParser drains 'r' immediately; any read failure is reported later, from
// Parse, so the constructor itself never needs an error return.
func NewParser(r io.Reader) *Parser {
	content, err := io.ReadAll(r)
	return &Parser{source: content, readErr: err}
}

// Parse tokenizes the source and parses it as a single Jack class, which is
// the only top-level construct the grammar allows.
func (p *Parser) Parse() (Class, error) {
	if p.readErr != nil {
		return Class{}, diag.Wrap(diag.InvalidInput, p.readErr, "error reading Jack source")
	}

	tokens, err := NewTokenizer(string(p.source)).Tokenize()
	if err != nil {
		return Class{}, err
	}

	p.tokens, p.pos = tokens, 0
	return p.parseClass()
}

// ----------------------------------------------------------------------------
// Token stream helpers

func (p *Parser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *Parser) peekAt(offset int) (Token, bool) {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[idx], true
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	p.pos++
	return tok
}

func (p *Parser) atSymbol(value string) bool {
	tok, ok := p.peek()
	return ok && tok.Type == SymbolTok && tok.Value == value
}

func (p *Parser) atKeyword(value string) bool {
	tok, ok := p.peek()
	return ok && tok.Type == KeywordTok && tok.Value == value
}

func (p *Parser) expectSymbol(value string) error {
	tok, ok := p.peek()
	if !ok || tok.Type != SymbolTok || tok.Value != value {
		return diag.New(diag.Syntax, fmt.Sprintf("expected symbol '%s', got '%s'", value, describeToken(tok, ok)))
	}
	p.advance()
	return nil
}

func (p *Parser) expectKeyword(value string) error {
	tok, ok := p.peek()
	if !ok || tok.Type != KeywordTok || tok.Value != value {
		return diag.New(diag.Syntax, fmt.Sprintf("expected keyword '%s', got '%s'", value, describeToken(tok, ok)))
	}
	p.advance()
	return nil
}

func (p *Parser) expectIdentifier() (string, error) {
	tok, ok := p.peek()
	if !ok || tok.Type != IdentifierTok {
		return "", diag.New(diag.Syntax, fmt.Sprintf("expected an identifier, got '%s'", describeToken(tok, ok)))
	}
	p.advance()
	return tok.Value, nil
}

func describeToken(tok Token, ok bool) string {
	if !ok {
		return "end of input"
	}
	return tok.Value
}

// ----------------------------------------------------------------------------
// Declarations

// Specialized function to parse a 'class := class ID { classVarDec* subroutineDec* }' production.
func (p *Parser) parseClass() (Class, error) {
	if err := p.expectKeyword("class"); err != nil {
		return Class{}, err
	}

	name, err := p.expectIdentifier()
	if err != nil {
		return Class{}, err
	}

	if err := p.expectSymbol("{"); err != nil {
		return Class{}, err
	}

	class := Class{
		Name:        name,
		Fields:      utils.OrderedMap[string, Variable]{},
		Subroutines: utils.OrderedMap[string, Subroutine]{},
	}

	for p.atKeyword("static") || p.atKeyword("field") {
		vars, err := p.parseClassVarDec()
		if err != nil {
			return Class{}, diag.Wrap(diag.KindOrDefault(err, diag.Syntax), err, fmt.Sprintf("error parsing field declaration in class '%s'", name))
		}
		for _, v := range vars {
			class.Fields.Set(v.Name, v)
		}
	}

	for p.atKeyword("constructor") || p.atKeyword("function") || p.atKeyword("method") {
		sub, err := p.parseSubroutineDec()
		if err != nil {
			return Class{}, diag.Wrap(diag.KindOrDefault(err, diag.Syntax), err, fmt.Sprintf("error parsing subroutine declaration in class '%s'", name))
		}
		class.Subroutines.Set(sub.Name, sub)
	}

	if err := p.expectSymbol("}"); err != nil {
		return Class{}, err
	}

	return class, nil
}

// Specialized function to parse a 'classVarDec := (static|field) type varName (, varName)* ;' production.
func (p *Parser) parseClassVarDec() ([]Variable, error) {
	kind := Static
	if p.advance().Value == "field" {
		kind = Field
	}

	dataType, err := p.parseType()
	if err != nil {
		return nil, err
	}

	names, err := p.parseVarNameList()
	if err != nil {
		return nil, err
	}

	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}

	vars := make([]Variable, len(names))
	for i, name := range names {
		vars[i] = Variable{Name: name, VarType: kind, DataType: dataType}
	}
	return vars, nil
}

// Specialized function to parse a 'varDec := var type varName (, varName)* ;' production.
func (p *Parser) parseVarDec() ([]Variable, error) {
	p.advance() // 'var'

	dataType, err := p.parseType()
	if err != nil {
		return nil, err
	}

	names, err := p.parseVarNameList()
	if err != nil {
		return nil, err
	}

	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}

	vars := make([]Variable, len(names))
	for i, name := range names {
		vars[i] = Variable{Name: name, VarType: Local, DataType: dataType}
	}
	return vars, nil
}

// parseVarNameList consumes the shared 'varName (, varName)*' tail of classVarDec and varDec.
func (p *Parser) parseVarNameList() ([]string, error) {
	first, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	names := []string{first}

	for p.atSymbol(",") {
		p.advance()
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, nil
}

// parseType accepts int/char/boolean, the identifier 'bool' as a permissive
// synonym for 'boolean', or any other identifier as an object (class) type.
func (p *Parser) parseType() (DataType, error) {
	tok, ok := p.peek()
	if !ok {
		return DataType{}, diag.New(diag.Syntax, "unexpected end of input, expected a type")
	}

	switch {
	case tok.Type == KeywordTok && tok.Value == "int":
		p.advance()
		return DataType{Main: Int}, nil
	case tok.Type == KeywordTok && tok.Value == "char":
		p.advance()
		return DataType{Main: Char}, nil
	case tok.Type == KeywordTok && tok.Value == "boolean":
		p.advance()
		return DataType{Main: Bool}, nil
	case tok.Type == IdentifierTok && tok.Value == "bool":
		p.advance()
		return DataType{Main: Bool}, nil
	case tok.Type == IdentifierTok:
		p.advance()
		return DataType{Main: Object, Subtype: tok.Value}, nil
	default:
		return DataType{}, diag.New(diag.Syntax, fmt.Sprintf("expected a type, got '%s'", tok.Value))
	}
}

// Specialized function to parse a 'subroutineDec := (constructor|function|method) (void|type) ID ( paramList ) subBody' production.
func (p *Parser) parseSubroutineDec() (Subroutine, error) {
	var kind SubroutineType
	switch p.advance().Value {
	case "constructor":
		kind = Constructor
	case "function":
		kind = Function
	case "method":
		kind = Method
	}

	var ret DataType
	if p.atKeyword("void") {
		p.advance()
		ret = DataType{Main: Void}
	} else {
		t, err := p.parseType()
		if err != nil {
			return Subroutine{}, err
		}
		ret = t
	}

	name, err := p.expectIdentifier()
	if err != nil {
		return Subroutine{}, err
	}

	if err := p.expectSymbol("("); err != nil {
		return Subroutine{}, err
	}
	args, err := p.parseParamList()
	if err != nil {
		return Subroutine{}, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return Subroutine{}, err
	}

	stmts, err := p.parseSubBody()
	if err != nil {
		return Subroutine{}, err
	}

	return Subroutine{Name: name, Type: kind, Return: ret, Arguments: args, Statements: stmts}, nil
}

// Specialized function to parse a 'paramList := (type varName (, type varName)*)?' production.
func (p *Parser) parseParamList() (utils.OrderedMap[string, Variable], error) {
	args := utils.OrderedMap[string, Variable]{}
	if p.atSymbol(")") {
		return args, nil
	}

	for {
		t, err := p.parseType()
		if err != nil {
			return args, err
		}
		name, err := p.expectIdentifier()
		if err != nil {
			return args, err
		}
		args.Set(name, Variable{Name: name, VarType: Parameter, DataType: t})

		if !p.atSymbol(",") {
			break
		}
		p.advance()
	}

	return args, nil
}

// Specialized function to parse a 'subBody := { varDec* statements }' production.
func (p *Parser) parseSubBody() ([]Statement, error) {
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}

	var stmts []Statement
	for p.atKeyword("var") {
		vars, err := p.parseVarDec()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, VarStmt{Vars: vars})
	}

	body, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, body...)

	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}

	return stmts, nil
}

// ----------------------------------------------------------------------------
// Statements

// Specialized function to parse a 'statements := statement*' production.
func (p *Parser) parseStatements() ([]Statement, error) {
	var stmts []Statement

	for {
		tok, ok := p.peek()
		if !ok || tok.Type != KeywordTok {
			return stmts, nil
		}

		var (
			stmt Statement
			err  error
		)

		switch tok.Value {
		case "let":
			stmt, err = p.parseLetStmt()
		case "if":
			stmt, err = p.parseIfStmt()
		case "while":
			stmt, err = p.parseWhileStmt()
		case "do":
			stmt, err = p.parseDoStmt()
		case "return":
			stmt, err = p.parseReturnStmt()
		default:
			return stmts, nil // Not a statement keyword, this block is done
		}

		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

// Specialized function to parse a 'letStmt := let ID ([ expr ])? = expr ;' production.
func (p *Parser) parseLetStmt() (Statement, error) {
	p.advance() // 'let'

	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}

	var lhs Expression = VarExpr{Var: name}
	if p.atSymbol("[") {
		p.advance()
		index, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("]"); err != nil {
			return nil, err
		}
		lhs = ArrayExpr{Var: name, Index: index}
	}

	if err := p.expectSymbol("="); err != nil {
		return nil, err
	}

	rhs, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}

	return LetStmt{Lhs: lhs, Rhs: rhs}, nil
}

// Specialized function to parse an 'ifStmt := if ( expr ) { statements } (else { statements })?' production.
func (p *Parser) parseIfStmt() (Statement, error) {
	p.advance() // 'if'

	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}

	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	thenBlock, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}

	var elseBlock []Statement
	if p.atKeyword("else") {
		p.advance()
		if err := p.expectSymbol("{"); err != nil {
			return nil, err
		}
		elseBlock, err = p.parseStatements()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("}"); err != nil {
			return nil, err
		}
	}

	return IfStmt{Condition: cond, ThenBlock: thenBlock, ElseBlock: elseBlock}, nil
}

// Specialized function to parse a 'whileStmt := while ( expr ) { statements }' production.
func (p *Parser) parseWhileStmt() (Statement, error) {
	p.advance() // 'while'

	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}

	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	block, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}

	return WhileStmt{Condition: cond, Block: block}, nil
}

// Specialized function to parse a 'doStmt := do subCall ;' production.
func (p *Parser) parseDoStmt() (Statement, error) {
	p.advance() // 'do'

	call, err := p.parseSubCall()
	if err != nil {
		return nil, err
	}

	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}

	return DoStmt{FuncCall: call}, nil
}

// Specialized function to parse a 'returnStmt := return expr? ;' production.
func (p *Parser) parseReturnStmt() (Statement, error) {
	p.advance() // 'return'

	if p.atSymbol(";") {
		p.advance()
		return ReturnStmt{}, nil
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}

	return ReturnStmt{Expr: expr}, nil
}

// ----------------------------------------------------------------------------
// Expressions

// Specialized function to parse an 'expression := term (op term)*' production.
//
// Terms are collected left to right while operators are pushed onto a LIFO
// 'utils.Stack'; once every term has been read, operators are popped back off
// and folded from the right into nested BinaryExpr nodes (term[0] op[0]
// (term[1] op[1] (... term[n]))), giving the expression its right-associative
// shape.
func (p *Parser) parseExpression() (Expression, error) {
	first, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	terms := []Expression{first}
	ops := utils.NewStack[ExprType]()

	for {
		tok, ok := p.peek()
		if !ok || tok.Type != SymbolTok {
			break
		}
		op, isOp := binaryOps[tok.Value]
		if !isOp {
			break
		}
		p.advance()

		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}

		terms = append(terms, term)
		ops.Push(op)
	}

	expr := terms[len(terms)-1]
	for i := len(terms) - 2; i >= 0; i-- {
		op, err := ops.Pop()
		if err != nil {
			return nil, diag.Wrap(diag.Syntax, err, "internal error folding expression operators")
		}
		expr = BinaryExpr{Type: op, Lhs: terms[i], Rhs: expr}
	}
	return expr, nil
}

// Specialized function to parse a 'term' production (see grammar for the full alternation).
func (p *Parser) parseTerm() (Expression, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, diag.New(diag.Syntax, "unexpected end of input, expected a term")
	}

	switch {
	case tok.Type == IntConstTok:
		p.advance()
		return LiteralExpr{Type: DataType{Main: Int}, Value: tok.Value}, nil

	case tok.Type == StringConstTok:
		p.advance()
		return LiteralExpr{Type: DataType{Main: String}, Value: tok.Value}, nil

	case tok.Type == KeywordTok && (tok.Value == "true" || tok.Value == "false"):
		p.advance()
		return LiteralExpr{Type: DataType{Main: Bool}, Value: tok.Value}, nil

	case tok.Type == KeywordTok && tok.Value == "null":
		p.advance()
		return LiteralExpr{Type: DataType{Main: Object}, Value: "null"}, nil

	case tok.Type == KeywordTok && tok.Value == "this":
		p.advance()
		return VarExpr{Var: "this"}, nil

	case tok.Type == SymbolTok && tok.Value == "(":
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return expr, nil

	case tok.Type == SymbolTok && (tok.Value == "-" || tok.Value == "~"):
		p.advance()
		rhs, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Type: unaryOps[tok.Value], Rhs: rhs}, nil

	case tok.Type == IdentifierTok:
		return p.parseIdentifierTerm(tok)

	default:
		return nil, diag.New(diag.Syntax, fmt.Sprintf("unexpected token '%s', expected a term", tok.Value))
	}
}

// parseIdentifierTerm implements the grammar's disambiguation rule: an
// identifier followed by '(' or '.' is always a subroutine call, never a
// plain variable reference or the start of one.
func (p *Parser) parseIdentifierTerm(tok Token) (Expression, error) {
	next, hasNext := p.peekAt(1)
	if hasNext && next.Type == SymbolTok && (next.Value == "(" || next.Value == ".") {
		return p.parseSubCall()
	}

	p.advance()
	if p.atSymbol("[") {
		p.advance()
		index, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("]"); err != nil {
			return nil, err
		}
		return ArrayExpr{Var: tok.Value, Index: index}, nil
	}

	return VarExpr{Var: tok.Value}, nil
}

// Specialized function to parse a 'subCall := ID ( expList ) | ID . ID ( expList )' production.
func (p *Parser) parseSubCall() (FuncCallExpr, error) {
	first, err := p.expectIdentifier()
	if err != nil {
		return FuncCallExpr{}, err
	}

	call := FuncCallExpr{FuncName: first}
	if p.atSymbol(".") {
		p.advance()
		method, err := p.expectIdentifier()
		if err != nil {
			return FuncCallExpr{}, err
		}
		call = FuncCallExpr{IsExtCall: true, Var: first, FuncName: method}
	}

	if err := p.expectSymbol("("); err != nil {
		return FuncCallExpr{}, err
	}
	args, err := p.parseExpList()
	if err != nil {
		return FuncCallExpr{}, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return FuncCallExpr{}, err
	}

	call.Arguments = args
	return call, nil
}

// Specialized function to parse an 'expList := (expr (, expr)*)?' production.
func (p *Parser) parseExpList() ([]Expression, error) {
	if p.atSymbol(")") {
		return nil, nil
	}

	first, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	args := []Expression{first}

	for p.atSymbol(",") {
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, expr)
	}

	return args, nil
}
