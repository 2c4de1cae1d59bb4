package grammar

import (
	"strings"
)

// Syntax names the grammar notation understood by the generation service.
type Syntax string

// SyntaxLark is the EBNF-like notation used by Lark parsers.
const SyntaxLark Syntax = "lark"

// Grammar is an immutable context-free grammar describing the accepted query language.
// The table and column vocabularies are closed: the generator can only reference names listed here.
type Grammar struct {
	name       string
	syntax     Syntax
	tables     []string
	columns    []string
	clauses    []string
	definition string
}

// Name returns the identifier used when attaching the grammar to a generation request.
func (g Grammar) Name() string { return g.name }

// Syntax returns the notation of Definition.
func (g Grammar) Syntax() Syntax { return g.syntax }

// Definition returns the serialised grammar document.
func (g Grammar) Definition() string { return g.definition }

// Tables returns the closed table vocabulary.
func (g Grammar) Tables() []string { return append([]string(nil), g.tables...) }

// Columns returns the closed column vocabulary.
func (g Grammar) Columns() []string { return append([]string(nil), g.columns...) }

// ClauseKeywords returns the keywords that may follow the FROM target, in statement order.
func (g Grammar) ClauseKeywords() []string { return append([]string(nil), g.clauses...) }

// HasTable reports whether name belongs to the table vocabulary.
func (g Grammar) HasTable(name string) bool {
	return contains(g.tables, name)
}

// HasColumn reports whether name belongs to the column vocabulary.
func (g Grammar) HasColumn(name string) bool {
	return contains(g.columns, name)
}

func contains(values []string, name string) bool {
	for _, v := range values {
		if v == name {
			return true
		}
	}
	return false
}

var (
	clickHouseTables = []string{"orders", "customers", "products"}

	clickHouseColumns = []string{
		"id", "customer_id", "product_id", "order_date", "total_amount", "status",
		"created_at", "updated_at", "name", "email", "price", "category",
	}

	clickHouseClauses = []string{"WHERE", "GROUP BY", "ORDER BY", "LIMIT"}
)

// ClickHouse is the read-only analytics grammar: a single SELECT over the orders schema.
var ClickHouse = New("clickhouse_grammar", SyntaxLark, clickHouseTables, clickHouseColumns, clickHouseClauses, clickHouseTemplate)

// New renders template into an immutable Grammar. The template may reference
// {{tables}} and {{columns}}, which expand to Lark alternations of the vocabularies.
func New(name string, syntax Syntax, tables, columns, clauses []string, template string) Grammar {
	replacer := strings.NewReplacer(
		"{{tables}}", alternation(tables),
		"{{columns}}", alternation(columns),
	)

	return Grammar{
		name:       name,
		syntax:     syntax,
		tables:     append([]string(nil), tables...),
		columns:    append([]string(nil), columns...),
		clauses:    append([]string(nil), clauses...),
		definition: replacer.Replace(template),
	}
}

func alternation(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + v + `"`
	}
	return strings.Join(quoted, " | ")
}

const clickHouseTemplate = `// ---------- Punctuation & operators ----------
SP: " "
COMMA: ","
GT: ">"
LT: "<"
GTE: ">="
LTE: "<="
EQ: "="
NEQ: "!="
SEMI: ";"
LPAREN: "("
RPAREN: ")"
ASTERISK: "*"
MINUS: "-"

// ---------- Keywords ----------
SELECT: "SELECT"
FROM: "FROM"
WHERE: "WHERE"
GROUP: "GROUP"
BY: "BY"
ORDER: "ORDER"
LIMIT: "LIMIT"
AND: "AND"
OR: "OR"
IN: "IN"
ASC: "ASC"
DESC: "DESC"
INTERVAL: "INTERVAL"
NOW: "NOW()"
NULL: "NULL"
HOUR: "HOUR"
DAY: "DAY"
WEEK: "WEEK"
MONTH: "MONTH"
YEAR: "YEAR"

// ---------- Aggregates ----------
COUNT: "COUNT"
SUM: "SUM"
AVG: "AVG"
MAX: "MAX"
MIN: "MIN"

// ---------- Statement ----------
start: select_statement SEMI
select_statement: SELECT SP select_list SP FROM SP table_name (SP where_clause)? (SP group_clause)? (SP order_clause)? (SP limit_clause)?

// ---------- Select list ----------
select_list: aggregate_function | column_list | group_select_list
aggregate_function: COUNT LPAREN ASTERISK RPAREN | aggregate_func_name LPAREN column_name RPAREN
aggregate_func_name: SUM | AVG | MAX | MIN
column_list: column_name (COMMA SP column_name)*
group_select_list: column_name COMMA SP aggregate_func_name LPAREN column_name RPAREN

// ---------- Where ----------
where_clause: WHERE SP condition (SP (AND | OR) SP condition)*
condition: column_name SP comparison_operator SP value | column_name SP IN SP LPAREN value_list RPAREN | time_condition
comparison_operator: EQ | NEQ | GT | LT | GTE | LTE
value: string_literal | number_literal | NULL
value_list: value (COMMA SP value)*
time_condition: column_name SP (GTE | LTE) SP NOW SP MINUS SP INTERVAL SP number_literal SP time_unit
time_unit: HOUR | DAY | WEEK | MONTH | YEAR

// ---------- Trailing clauses ----------
group_clause: GROUP SP BY SP column_name (COMMA SP column_name)*
order_clause: ORDER SP BY SP column_name (SP (ASC | DESC))?
limit_clause: LIMIT SP number_literal

// ---------- Vocabularies ----------
table_name: {{tables}}
column_name: {{columns}}

// ---------- Literals ----------
string_literal: /'[A-Za-z0-9_ ]*'/
number_literal: /[0-9]+(\.[0-9]+)?/
`
