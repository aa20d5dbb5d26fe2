// Package instrumentation holds the Nix expression the evaluator invoker
// wraps the user's recipe file in. The expression hooks builtins.trace to
// report, for every derivation-valued attribute of the recipe's default
// expression, the store path nix-build produced for it — the "trace: lorri attribute: ..."
// lines the Output Parser (internal/builder) recognizes.
package instrumentation

// LoggedEvaluation is materialized once per loop session via the CAS (see
// internal/cas) and passed to nix-build as its expression argument. It
// imports the user's recipe file with `src`, evaluates every top-level
// attribute, and re-exports each one, wrapping those with an outPath in a
// trace call so their resulting store path appears on stderr without nix-build needing to
// understand recipe-file semantics itself — those remain entirely the
// evaluator's concern.
const LoggedEvaluation = `
# Passed to nix-build as the expression to evaluate; src and runTimeClosure
# are supplied via --argstr by the Evaluator Invoker (internal/builder).
{ src, runTimeClosure ? "" }:
let
  imported = import src;
  evaluated =
    if builtins.isFunction imported
    then imported {}
    else imported;

  traced = name: value:
    builtins.trace
      "lorri attribute: '${name}' -> '${builtins.unsafeDiscardStringContext value}'"
      value;
in
builtins.mapAttrs
  (name: value:
    if builtins.isAttrs value && value ? outPath
    then traced name value
    else value)
  evaluated
`
