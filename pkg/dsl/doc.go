/*
Package dsl builds call scenarios in Go instead of YAML or Loam documents.

Steps keep the order they are added in, so the first step added opens the call.
Without declared categories the built-in category table is used.

	b := dsl.New()

	s := b.Scenario("wake_up").
		Name("Wake-up Call").
		Field("caregiver_name", "Caregiver Name", true)

	s.Step("hello").
		Say("Good morning {caregiver_name}, are you on your way?").
		Accepts("yes", "no").
		Go("bye")

	s.Step("bye").Say("Thanks, talk soon.")

	cat, err := b.Build()
	// ... carecall.New(carecall.WithCatalog(cat))
*/
package dsl
