/*
Package runner implements the console loop of a carecall call.

It acts as the bridge between a carecall.Session and a terminal or a pipe.
The runner sanitizes every reply, understands a few slash commands, and
optionally persists the session after each turn.

# Key Components

  - Runner: drives one call until it completes or the caregiver quits.
  - IOHandler: decouples how replies are shown and lines are read.
  - TextHandler: interactive terminal usage.
  - JSONHandler: one api.ChatResponse per line, for scripting.

# Commands

	/context key=value ...   merge fields into the call context
	/reset                   restart the scenario with an empty context
	/quit                    leave the call

# Usage

	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
		runner.WithStore(store),
	)

	if err := r.Run(ctx, engine.NewSession(), "no_schedule"); err != nil {
		log.Fatal(err)
	}
*/
package runner
