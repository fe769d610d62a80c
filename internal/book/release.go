//go:build !lobdebug

package book

const assertInvariants = false
