/*
Package carecall is a scripted dialogue engine for caregiver-support phone calls.

A fixed catalog of call scripts ("scenarios") drives an agent/caregiver exchange:
each step has an agent line with {field} placeholders, a list of reply categories
it accepts, and a successor step. Replies are classified by case-insensitive
keyword containment; unmatched replies get a polite re-prompt and the call stays
where it is.

# Backends

By default every turn is answered by the local script. With WithResponder the
engine first asks a remote responder (the carecall HTTP protocol or an OpenAI
chat model). The first remote failure or timeout switches that session to the
local script for the rest of the call; it never switches back.

# Usage

	eng, err := carecall.New()
	if err != nil {
		log.Fatal(err)
	}

	sess := eng.NewSession()
	reply, err := sess.Start(ctx, "out_of_window")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Message)

	sess.UpdateContext(ctx, map[string]string{"officeLocation": "Texas"})

	reply, err = sess.Submit(ctx, "I am doing well")

Hosts that serve many callers use the stateless Engine.Start / Engine.Submit pair
together with a session.Manager and a ports.SessionStore.
*/
package carecall
