//go:build lobdebug

package book

// assertInvariants makes every mutation re-validate the ladders it touched
// and panic on a violation.
const assertInvariants = true
