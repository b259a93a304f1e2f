package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// errors.New(fmt.Sprintf(...)) is fmt.Errorf in disguise.
	m.Match(`errors.New(fmt.Sprintf($*args))`).
		Report(`use fmt.Errorf instead of errors.New(fmt.Sprintf(...))`).
		Suggest(`fmt.Errorf($args)`)

	// Case-insensitive comparison without allocating two lowered copies.
	m.Match(`strings.ToLower($a) == strings.ToLower($b)`).
		Report(`use strings.EqualFold instead of comparing lowered strings`).
		Suggest(`strings.EqualFold($a, $b)`)

	// time.Now().Sub(x) is time.Since(x).
	m.Match(`time.Now().Sub($x)`).
		Report(`use time.Since instead of time.Now().Sub`).
		Suggest(`time.Since($x)`)

	// Two consecutive guards returning the same value merge with ||.
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)
}
