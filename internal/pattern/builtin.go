package pattern

import "github.com/dusk-indust/syntaxkit/internal/lang"

// commonPatterns apply to every language whose placeholder table can fill
// them. A language set entry with the same key replaces the common one.
var commonPatterns = []Pattern{
	{
		Key:      KeyFunction,
		Template: `({function_type} name: ({name_type}) @function.name) @function.def`,
		Primary:  "function.def",
	},
	{
		Key:      KeyClass,
		Template: `({class_type} name: ({class_name_type}) @class.name) @class.def`,
		Primary:  "class.def",
	},
	{
		Key:      KeyImport,
		Template: `({import_type}) @import.def`,
		Primary:  "import.def",
	},
	{
		Key:      KeyControlFlow,
		Template: `[({if_type}) ({loop_type})] @control_flow`,
		Primary:  "control_flow",
	},
	{
		Key:      KeyComment,
		Template: `({comment_type}) @comment`,
		Primary:  "comment",
	},
	{
		Key:      KeyStringStatement,
		Template: `(expression_statement ({string_type}) @string.value) @string.stmt`,
		Primary:  "string.stmt",
	},
	{
		Key:      KeyError,
		Template: `(ERROR) @error`,
		Primary:  "error",
	},
}

// placeholders fills generic templates per language. A missing or empty
// entry makes the pattern unavailable for that language.
var placeholders = map[lang.Language]map[string]string{
	lang.Go: {
		"function_type": "function_declaration",
		"name_type":     "identifier",
		"import_type":   "import_declaration",
		"if_type":       "if_statement",
		"loop_type":     "for_statement",
		"comment_type":  "comment",
	},
	lang.Python: {
		"function_type":   "function_definition",
		"name_type":       "identifier",
		"class_type":      "class_definition",
		"class_name_type": "identifier",
		"import_type":     "import_statement",
		"if_type":         "if_statement",
		"loop_type":       "for_statement",
		"comment_type":    "comment",
		"string_type":     "string",
	},
	lang.Rust: {
		"function_type": "function_item",
		"name_type":     "identifier",
		"import_type":   "use_declaration",
		"if_type":       "if_expression",
		"loop_type":     "for_expression",
		"comment_type":  "line_comment",
	},
	lang.TypeScript: tsPlaceholders,
	lang.TSX:        tsPlaceholders,
	lang.JavaScript: {
		"function_type":   "function_declaration",
		"name_type":       "identifier",
		"class_type":      "class_declaration",
		"class_name_type": "identifier",
		"import_type":     "import_statement",
		"if_type":         "if_statement",
		"loop_type":       "for_statement",
		"comment_type":    "comment",
		"string_type":     "string",
	},
	lang.Java: {
		"class_type":      "class_declaration",
		"class_name_type": "identifier",
		"import_type":     "import_declaration",
		"if_type":         "if_statement",
		"loop_type":       "for_statement",
		"comment_type":    "line_comment",
	},
}

var tsPlaceholders = map[string]string{
	"function_type":   "function_declaration",
	"name_type":       "identifier",
	"class_type":      "class_declaration",
	"class_name_type": "type_identifier",
	"import_type":     "import_statement",
	"if_type":         "if_statement",
	"loop_type":       "for_statement",
	"comment_type":    "comment",
	"string_type":     "string",
}

// languagePatterns hold the constructs whose shape differs enough per
// grammar that a placeholder cannot express them.
var languagePatterns = map[lang.Language][]Pattern{
	lang.Go: {
		{Key: KeyFunction, Primary: "function.def", Template: `(function_declaration
  name: (identifier) @function.name
  parameters: (parameter_list) @function.params) @function.def`},
		{Key: KeyMethod, Primary: "method.def", Template: `(method_declaration
  receiver: (parameter_list) @method.receiver
  name: (field_identifier) @method.name) @method.def`},
		{Key: KeyStruct, Primary: "struct.def", Template: `(type_declaration
  (type_spec name: (type_identifier) @struct.name type: (struct_type))) @struct.def`},
		{Key: KeyInterface, Primary: "interface.def", Template: `(type_declaration
  (type_spec name: (type_identifier) @interface.name type: (interface_type))) @interface.def`},
		{Key: KeyImport, Primary: "import.def", Template: `(import_spec path: (_) @import.path) @import.def`},
		{Key: KeyVariable, Primary: "variable.def", Template: `[
  (var_spec name: (identifier) @variable.name)
  (const_spec name: (identifier) @variable.name)
] @variable.def`},
		{Key: KeyField, Primary: "field.def", Template: `(field_declaration
  name: (field_identifier) @field.name
  type: (_) @field.type) @field.def`},
		{Key: KeyNamespace, Primary: "namespace.def", Template: `(package_clause (package_identifier) @namespace.name) @namespace.def`},
		{Key: KeyControlFlow, Primary: "control_flow", Template: `[
  (if_statement)
  (for_statement)
  (expression_switch_statement)
  (type_switch_statement)
  (select_statement)
] @control_flow`},
	},

	lang.Python: {
		{Key: KeyFunction, Primary: "function.def", Template: `(function_definition
  name: (identifier) @function.name
  parameters: (parameters) @function.params
  body: (block) @function.body) @function.def`},
		{Key: KeyMethod, Primary: "method.def", Template: `(class_definition
  body: (block
    [
      (function_definition name: (identifier) @method.name) @method.def
      (decorated_definition
        definition: (function_definition name: (identifier) @method.name) @method.def)
    ]))`},
		{Key: KeyClass, Primary: "class.def", Template: `(class_definition
  name: (identifier) @class.name
  body: (block) @class.body) @class.def`},
		{Key: KeyImport, Primary: "import.def", Template: `[(import_statement) (import_from_statement)] @import.def`},
		{Key: KeyVariable, Primary: "variable.def", Template: `(expression_statement
  (assignment left: (identifier) @variable.name)) @variable.def`},
		{Key: KeyControlFlow, Primary: "control_flow", Template: `[
  (if_statement)
  (for_statement)
  (while_statement)
  (try_statement)
  (with_statement)
] @control_flow`},
		{Key: KeyStringStatement, Primary: "string.stmt", Template: `(expression_statement (string)) @string.stmt`},
		{Key: KeyModuleDocstring, Primary: "docstring", Template: `(module . (comment)* . (expression_statement (string)) @docstring) @docstring.owner`},
		{Key: KeyClassDocstring, Primary: "docstring", Template: `(class_definition
  body: (block . (expression_statement (string)) @docstring)) @docstring.owner`},
		{Key: KeyFunctionDocstring, Primary: "docstring", Template: `(function_definition
  body: (block . (expression_statement (string)) @docstring)) @docstring.owner`},
	},

	lang.Rust: {
		{Key: KeyFunction, Primary: "function.def", Template: `(function_item
  name: (identifier) @function.name
  parameters: (parameters) @function.params) @function.def`},
		{Key: KeyMethod, Primary: "method.def", Template: `(impl_item
  body: (declaration_list
    (function_item name: (identifier) @method.name) @method.def))`},
		{Key: KeyStruct, Primary: "struct.def", Template: `(struct_item name: (type_identifier) @struct.name) @struct.def`},
		{Key: KeyInterface, Primary: "interface.def", Template: `(trait_item name: (type_identifier) @interface.name) @interface.def`},
		{Key: KeyNamespace, Primary: "namespace.def", Template: `(mod_item name: (identifier) @namespace.name) @namespace.def`},
		{Key: KeyImport, Primary: "import.def", Template: `(use_declaration argument: (_) @import.path) @import.def`},
		{Key: KeyVariable, Primary: "variable.def", Template: `(let_declaration pattern: (identifier) @variable.name) @variable.def`},
		{Key: KeyField, Primary: "field.def", Template: `(field_declaration name: (field_identifier) @field.name) @field.def`},
		{Key: KeyComment, Primary: "comment", Template: `[(line_comment) (block_comment)] @comment`},
		{Key: KeyControlFlow, Primary: "control_flow", Template: `[
  (if_expression)
  (for_expression)
  (while_expression)
  (loop_expression)
  (match_expression)
] @control_flow`},
	},

	lang.TypeScript: tsPatterns,
	lang.TSX:        tsPatterns,

	lang.JavaScript: {
		{Key: KeyMethod, Primary: "method.def", Template: `(method_definition name: (property_identifier) @method.name) @method.def`},
		{Key: KeyImport, Primary: "import.def", Template: `(import_statement source: (string) @import.path) @import.def`},
		{Key: KeyVariable, Primary: "variable.def", Template: `(variable_declarator name: (identifier) @variable.name) @variable.def`},
		{Key: KeyField, Primary: "field.def", Template: `(field_definition property: (property_identifier) @field.name) @field.def`},
		{Key: KeyControlFlow, Primary: "control_flow", Template: jsControlFlow},
	},

	lang.Java: {
		{Key: KeyMethod, Primary: "method.def", Template: `[
  (method_declaration name: (identifier) @method.name)
  (constructor_declaration name: (identifier) @method.name)
] @method.def`},
		{Key: KeyInterface, Primary: "interface.def", Template: `(interface_declaration name: (identifier) @interface.name) @interface.def`},
		{Key: KeyNamespace, Primary: "namespace.def", Template: `(package_declaration) @namespace.def`},
		{Key: KeyField, Primary: "field.def", Template: `(field_declaration
  declarator: (variable_declarator name: (identifier) @field.name)) @field.def`},
		{Key: KeyVariable, Primary: "variable.def", Template: `(local_variable_declaration
  declarator: (variable_declarator name: (identifier) @variable.name)) @variable.def`},
		{Key: KeyComment, Primary: "comment", Template: `[(line_comment) (block_comment)] @comment`},
		{Key: KeyControlFlow, Primary: "control_flow", Template: `[
  (if_statement)
  (for_statement)
  (enhanced_for_statement)
  (while_statement)
  (try_statement)
] @control_flow`},
	},
}

const jsControlFlow = `[
  (if_statement)
  (for_statement)
  (for_in_statement)
  (while_statement)
  (switch_statement)
  (try_statement)
] @control_flow`

var tsPatterns = []Pattern{
	{Key: KeyFunction, Primary: "function.def", Template: `(function_declaration
  name: (identifier) @function.name
  parameters: (formal_parameters) @function.params
  body: (statement_block) @function.body) @function.def`},
	{Key: KeyMethod, Primary: "method.def", Template: `(method_definition name: (property_identifier) @method.name) @method.def`},
	{Key: KeyInterface, Primary: "interface.def", Template: `(interface_declaration name: (type_identifier) @interface.name) @interface.def`},
	{Key: KeyNamespace, Primary: "namespace.def", Template: `(internal_module name: (_) @namespace.name) @namespace.def`},
	{Key: KeyImport, Primary: "import.def", Template: `(import_statement source: (string) @import.path) @import.def`},
	{Key: KeyVariable, Primary: "variable.def", Template: `(variable_declarator name: (identifier) @variable.name) @variable.def`},
	{Key: KeyField, Primary: "field.def", Template: `(public_field_definition name: (property_identifier) @field.name) @field.def`},
	{Key: KeyControlFlow, Primary: "control_flow", Template: jsControlFlow},
}
