// Package filter parses and evaluates LDAP-style attribute filters of the
// form used by requirement directives, for example:
//
//	(&(bnd.package=com.example.api)(version>=1.2))
//
// Supported operators are equality, >=, <=, presence (key=*), substring
// matching with embedded wildcards, conjunction (&), disjunction (|) and
// negation (!). Comparisons are typed by the attribute value: version
// attributes compare as versions, numeric attributes as numbers and
// everything else as strings. A slice attribute matches when any element
// matches.
package filter
