// Package transpile implements the Expression Transpiler (C4) and Policy
// Transpiler (C5): it walks an internal/expr/ast tree and emits target-
// policy-language (Rego) source, following the dispatcher-not-virtual-
// dispatch design from spec §9 — a closed type switch over AST node
// kinds, not methods on the AST types themselves.
package transpile

// UtilsPackage is the fixed package name of the shared utility-rules
// library every compiled policy document imports. It is installed once
// per policy source (see internal/install) and passed to the engine
// alongside each policy file via a separate --data argument (C9).
const UtilsPackage = "ansible_policy.utils"

// UtilsFileName is the file name the utility library is written under
// within an installed policy source's directory.
const UtilsFileName = "utils.rego"

// UtilsSource is the utility-rules library body. Every helper referenced
// by a compiled condition tree (to_list, check_item_in_list,
// check_item_not_in_list, check_item_key_in_list) lives here exactly
// once; policy documents call into it as `utils.<rule>(...)` after
// `import data.ansible_policy.utils`.
const UtilsSource = `package ansible_policy.utils

import rego.v1

to_list(x) := x if is_array(x)

to_list(x) := [x] if not is_array(x)

check_item_in_list(list, item) if item in list

check_item_not_in_list(list, item) if not item in list

check_item_key_in_list(container, key) if key in object.keys(container)
`
