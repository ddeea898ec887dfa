// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package builtins

import (
	"strconv"
	"strings"

	"github.com/Ensemplix/Monsoon/internal/commands"
)

func (h *host) math() commands.Source {
	return commands.NewActionSet(
		commands.Action{
			Name:        "add",
			Description: "Add two numbers",
			Params:      params(commands.Arg("a", commands.TypeInt), commands.Arg("b", commands.TypeInt)),
			Returns:     commands.ReturnBool,
			Handler:     sum,
		},
		commands.Action{
			Name:        "add",
			Description: "Add three numbers",
			Params: params(commands.Arg("a", commands.TypeInt), commands.Arg("b", commands.TypeInt),
				commands.Arg("c", commands.TypeInt)),
			Returns: commands.ReturnBool,
			Handler: sum,
		},
		commands.Action{
			Name:        "avg",
			Description: "Average any amount of numbers",
			Params:      params(commands.RestArgs("numbers", commands.TypeDouble)),
			Returns:     commands.ReturnBool,
			Handler:     average,
		},
		commands.Action{
			Name:        "max",
			Description: "Largest of the given numbers",
			Params:      params(commands.Rest("numbers", commands.TypeDouble)),
			Returns:     commands.ReturnBool,
			Handler:     maximum,
		},
	)
}

func sum(s commands.Sender, args commands.Values) (bool, error) {
	total := 0
	for i := range args {
		arg := args.Argument(i)
		if !given(arg) {
			reply(s, "Missing number")
			return false, nil
		}
		n, ok := commands.As[int](arg)
		if !arg.OK() || !ok {
			replyf(s, "%q is not a whole number", arg.Text)
			return false, nil
		}
		total += n
	}
	reply(s, strconv.Itoa(total))
	return true, nil
}

func average(s commands.Sender, args commands.Values) (bool, error) {
	numbers := args.Arguments(0)
	if len(numbers) == 0 {
		reply(s, "Nothing to average")
		return false, nil
	}
	var total float64
	for _, arg := range numbers {
		f, ok := commands.As[float64](arg)
		if !arg.OK() || !ok {
			replyf(s, "%q is not a number", arg.Text)
			return false, nil
		}
		total += f
	}
	reply(s, strconv.FormatFloat(total/float64(len(numbers)), 'g', -1, 64))
	return true, nil
}

// maximum takes plain values, so malformed tokens count as zero.
func maximum(s commands.Sender, args commands.Values) (bool, error) {
	numbers := args.Doubles(0)
	if len(numbers) == 0 {
		reply(s, "Nothing to compare")
		return false, nil
	}
	best := numbers[0]
	for _, f := range numbers[1:] {
		if f > best {
			best = f
		}
	}
	reply(s, strconv.FormatFloat(best, 'g', -1, 64))
	return true, nil
}

func (h *host) echo() commands.Source {
	return commands.NewActionSet(
		commands.Action{
			Main:        true,
			Description: "Repeat words back",
			Params:      params(commands.Rest("words", commands.TypeString)),
			Handler: func(s commands.Sender, args commands.Values) (bool, error) {
				reply(s, strings.Join(args.Strings(0), " "))
				return true, nil
			},
		},
		commands.Action{
			Name:        "upper",
			Description: "Repeat words back in upper case",
			Params:      params(commands.Rest("words", commands.TypeString)),
			Handler: func(s commands.Sender, args commands.Values) (bool, error) {
				reply(s, strings.ToUpper(strings.Join(args.Strings(0), " ")))
				return true, nil
			},
		},
	)
}
