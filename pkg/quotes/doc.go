// Package quotes stores landed-cost wizard submissions per user. Inputs are
// collected and echoed back; computing the landed cost itself is out of
// scope.
package quotes
