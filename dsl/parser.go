// Package dsl 定义样式表文本格式的语法树与解析器。
//
// 一个样式表形如：
//
//	style Streets v1 {
//	  meta { title: "..." }
//	  resources { font Body { src: "builtin:goregular" } }
//	  layer road-labels { symbol-placement: line }
//	}
//
// 属性值中的函数调用（zoom、get 等）只保留原始 token，由 style 包负责求值语义。
package dsl

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var styleLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*|#[^\n]*|/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
	{Name: "Space", Pattern: `[ \t\r]+`},
	{Name: "EOL", Pattern: `\n+`},
	{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
	{Name: "Number", Pattern: `-?(?:\d+\.\d+|\d+)(?:px|em|deg)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
	{Name: "Open", Pattern: `{`},
	{Name: "Close", Pattern: `}`},
	{Name: "Symbol", Pattern: `[][(),.=+\-*/%<>!?;:^]`},
})

type tokenSet struct {
	names                           map[lexer.TokenType]string
	eol, open, close, symbol, quote lexer.TokenType
}

// tokenKinds 缓存各 token 类型，供自定义 Parseable 判断边界。
var tokenKinds = func() tokenSet {
	symbols := styleLexer.Symbols()
	k := tokenSet{names: make(map[lexer.TokenType]string, len(symbols))}
	for name, tt := range symbols {
		k.names[tt] = name
	}
	k.eol, k.open, k.close = symbols["EOL"], symbols["Open"], symbols["Close"]
	k.symbol, k.quote = symbols["Symbol"], symbols["String"]
	return k
}()

var styleParser = participle.MustBuild[Document](
	participle.Lexer(styleLexer),
	participle.Elide("Space", "Comment"),
)

// Document 是样式表文件的根节点。
type Document struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Name     string         `parser:"EOL* 'style' @Ident"`
	Version  string         `parser:"@Ident"`
	Sections []*Section     `parser:"Open EOL* ( @@ EOL* )* Close EOL*"`
}

// Section 是顶层分区，三者恰有其一。
type Section struct {
	Meta      *MetaSection      `parser:"  @@"`
	Resources *ResourcesSection `parser:"| @@"`
	Layer     *LayerSection     `parser:"| @@"`
}

// MetaSection 是描述性键值，不参与布局。
type MetaSection struct {
	Block *Block `parser:"'meta' @@"`
}

// ResourcesSection 声明字体与图标图像。
type ResourcesSection struct {
	Block *Block `parser:"'resources' @@"`
}

// LayerSection 是一个 symbol 图层，块内为 layout 属性赋值。
type LayerSection struct {
	Pos   lexer.Position `parser:"" json:"-"`
	ID    string         `parser:"'layer' @Ident"`
	Block *Block         `parser:"@@"`
}

// Block 是花括号内以换行或分号分隔的语句。
type Block struct {
	Statements []*Statement `parser:"Open EOL* ( @@ ( ';' | EOL )* )* Close"`
}

// Statement 要么是 `key: value`，要么是带参数的资源声明。
type Statement struct {
	Assignment *Assignment `parser:"  @@"`
	Command    *Command    `parser:"| @@"`
}

type Assignment struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Key   string         `parser:"@Ident"`
	Value *Value         `parser:"':' EOL* @@"`
}

// Command 用于资源声明，例如 `font Body { ... }`。
type Command struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Name  string         `parser:"@Ident"`
	Args  []*Lexeme      `parser:"@@*"`
	Block *Block         `parser:"( EOL* @@ )?"`
}

// Value 是属性值：字符串、带单位的数值、数组，或交给 style 包的原始表达式。
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Array  *ArrayValue    `parser:"| @@"`
	Expr   *Expression    `parser:"| @@"`
}

// ArrayValue 的元素可用逗号、分号或换行分隔。
type ArrayValue struct {
	Values []*Value `parser:"'[' EOL* ( @@ ( (',' | ';' | EOL) EOL* @@ )* )? EOL* ']'"`
}

// StringLiteral 在捕获时去掉引号并处理转义。
type StringLiteral string

func (s *StringLiteral) Capture(values []string) error {
	if len(values) != 1 {
		return fmt.Errorf("字符串字面量需要恰好一个 token，得到 %d", len(values))
	}
	text, err := strconv.Unquote(values[0])
	if err != nil {
		return fmt.Errorf("字符串 %s 无法解析: %w", values[0], err)
	}
	*s = StringLiteral(text)
	return nil
}

// Lexeme 是一个原始 token。Value 对字符串是去引号后的内容，Raw 保留原文。
type Lexeme struct {
	Type  string         `json:"type"`
	Value string         `json:"value"`
	Raw   string         `json:"raw"`
	Pos   lexer.Position `json:"-"`
}

// Parse 让 Lexeme 作为命令参数：遇到换行、花括号或分号即停止。
func (l *Lexeme) Parse(lex *lexer.PeekingLexer) error {
	if endsArgument(lex.Peek()) {
		return participle.NextMatch
	}
	next, err := take(lex)
	if err != nil {
		return err
	}
	*l = next
	return nil
}

// Expression 保留原始 token，交给 style 包解析为表达式。
type Expression struct {
	Parts []*Lexeme
}

// Parse 收集 token 直到位于最外层的换行、逗号、分号、花括号或未配对的 `]`。
// 括号必须配对，否则返回错误。
func (e *Expression) Parse(lex *lexer.PeekingLexer) error {
	var closers []string
	for {
		tok := lex.Peek()
		if tok.EOF() || endsExpression(tok, len(closers)) {
			break
		}
		next, err := take(lex)
		if err != nil {
			return err
		}
		switch next.Raw {
		case "(":
			closers = append(closers, ")")
		case "[":
			closers = append(closers, "]")
		case ")", "]":
			if len(closers) == 0 || closers[len(closers)-1] != next.Raw {
				return participle.Errorf(next.Pos, "多余的 %q", next.Raw)
			}
			closers = closers[:len(closers)-1]
		}
		e.Parts = append(e.Parts, &next)
	}
	if len(e.Parts) == 0 {
		return participle.NextMatch
	}
	if len(closers) > 0 {
		return participle.Errorf(e.Parts[0].Pos, "表达式缺少 %q", closers[len(closers)-1])
	}
	return nil
}

func endsArgument(tok *lexer.Token) bool {
	if tok == nil || tok.EOF() {
		return true
	}
	switch tok.Type {
	case tokenKinds.eol, tokenKinds.open, tokenKinds.close:
		return true
	case tokenKinds.symbol:
		return tok.Value == ";"
	}
	return false
}

func endsExpression(tok *lexer.Token, depth int) bool {
	switch tok.Type {
	case tokenKinds.eol, tokenKinds.open, tokenKinds.close:
		return depth == 0
	case tokenKinds.symbol:
		switch tok.Value {
		case ";", ",", "]":
			return depth == 0
		}
	}
	return false
}

func take(lex *lexer.PeekingLexer) (Lexeme, error) {
	tok := lex.Next()
	if tok.EOF() {
		return Lexeme{}, participle.NextMatch
	}
	name, ok := tokenKinds.names[tok.Type]
	if !ok {
		name = fmt.Sprintf("#%d", tok.Type)
	}
	l := Lexeme{Type: name, Value: tok.Value, Raw: tok.Value, Pos: tok.Pos}
	if tok.Type == tokenKinds.quote {
		text, err := strconv.Unquote(tok.Value)
		if err != nil {
			return Lexeme{}, participle.Errorf(tok.Pos, "字符串 %s 无法解析: %v", tok.Value, err)
		}
		l.Value = text
	}
	return l, nil
}

// Parse 解析样式表。filename 只用于错误中的位置信息，可为空。
func Parse(filename string, r io.Reader) (*Document, error) {
	return styleParser.Parse(filename, r)
}

// ParseString 解析内存中的样式表文本。
func ParseString(input string) (*Document, error) {
	return styleParser.ParseString("", input)
}
