package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/Nuhvi/pubky-core/kvstore"
	"github.com/Nuhvi/pubky-core/log"
	"github.com/Nuhvi/pubky-core/mast"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	sub := args[0]
	rest := args[1:]

	switch sub {
	case "put":
		return runPut(rest)
	case "get":
		return runGet(rest)
	case "delete":
		return runDelete(rest)
	case "roots":
		return runRoots(rest)
	case "stats":
		return runStats(rest)
	case "gc":
		return runGC(rest)
	default:
		fmt.Fprintf(os.Stderr, "mastctl: unknown subcommand %q\n", sub)
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: mastctl <put|get|delete|roots|stats|gc> [flags]")
}

// dbFlag registers the -db flag shared by every subcommand, naming the flat
// file a MemStore's committed contents are persisted to between runs.
func dbFlag(fs *flag.FlagSet) *string {
	return fs.String("db", "mastctl.db", "path to the flat file backing the reference store")
}

func runPut(args []string) int {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	dbPath := dbFlag(fs)
	owner := fs.String("owner", "", "owner identifier whose tree to modify")
	key := fs.String("key", "", "key to insert")
	value := fs.String("value", "", "value to insert")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *owner == "" || *key == "" {
		fmt.Fprintln(os.Stderr, "mastctl put: -owner and -key are required")
		return 2
	}

	logger := log.Default().Module("mastctl")

	return withWriteTx(*dbPath, func(tx kvstore.Tx) error {
		reg := mast.OpenRootRegistry(tx)
		root, _, err := reg.Get([]byte(*owner))
		if err != nil {
			return err
		}

		newRoot, err := mast.Insert(tx, root, []byte(*key), []byte(*value))
		if err != nil {
			return err
		}
		if err := reg.Set([]byte(*owner), *newRoot); err != nil {
			return err
		}

		logger.Info("put", "owner", *owner, "key", *key, "root", hex.EncodeToString(newRoot.Bytes()))
		return nil
	})
}

func runGet(args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	dbPath := dbFlag(fs)
	owner := fs.String("owner", "", "owner identifier whose tree to read")
	key := fs.String("key", "", "key to look up")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *owner == "" || *key == "" {
		fmt.Fprintln(os.Stderr, "mastctl get: -owner and -key are required")
		return 2
	}

	return withReadTx(*dbPath, func(tx kvstore.Tx) error {
		reg := mast.OpenRootRegistry(tx)
		root, found, err := reg.Get([]byte(*owner))
		if err != nil {
			return err
		}
		if !found {
			fmt.Printf("owner %q has no tree\n", *owner)
			return nil
		}

		value, found, err := mast.Get(tx, root, []byte(*key))
		if err != nil {
			return err
		}
		if !found {
			fmt.Printf("key %q not found\n", *key)
			return nil
		}
		fmt.Printf("%s\n", value)
		return nil
	})
}

func runDelete(args []string) int {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	dbPath := dbFlag(fs)
	owner := fs.String("owner", "", "owner identifier whose tree to modify")
	key := fs.String("key", "", "key to remove")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *owner == "" || *key == "" {
		fmt.Fprintln(os.Stderr, "mastctl delete: -owner and -key are required")
		return 2
	}

	logger := log.Default().Module("mastctl")

	return withWriteTx(*dbPath, func(tx kvstore.Tx) error {
		reg := mast.OpenRootRegistry(tx)
		root, found, err := reg.Get([]byte(*owner))
		if err != nil {
			return err
		}
		if !found {
			fmt.Printf("owner %q has no tree\n", *owner)
			return nil
		}

		newRoot, _, removed, err := mast.Remove(tx, root, []byte(*key))
		if err != nil {
			return err
		}
		if !removed {
			fmt.Printf("key %q not found\n", *key)
			return nil
		}
		if newRoot == nil {
			if err := reg.Delete([]byte(*owner)); err != nil {
				return err
			}
		} else if err := reg.Set([]byte(*owner), *newRoot); err != nil {
			return err
		}

		logger.Info("delete", "owner", *owner, "key", *key)
		return nil
	})
}

func runRoots(args []string) int {
	fs := flag.NewFlagSet("roots", flag.ContinueOnError)
	dbPath := dbFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	return withReadTx(*dbPath, func(tx kvstore.Tx) error {
		it := tx.Table(mast.RootsTable).Iterate(nil)
		defer it.Release()
		for it.Next() {
			fmt.Printf("%s\t%x\n", it.Key(), it.Value())
		}
		return nil
	})
}

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	dbPath := dbFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	return withReadTx(*dbPath, func(tx kvstore.Tx) error {
		store := mast.NewStore(tx.Table(mast.NodesTable))
		st, err := store.GatherStats()
		if err != nil {
			return err
		}
		fmt.Printf("total nodes:        %d\n", st.TotalNodes)
		fmt.Printf("referenced nodes:   %d\n", st.ReferencedNodes)
		fmt.Printf("unreferenced nodes: %d\n", st.UnreferencedCnt)
		fmt.Printf("total bytes:        %d\n", st.TotalBytes)
		fmt.Printf("max ref count:      %d\n", st.MaxRefCount)
		return nil
	})
}

func runGC(args []string) int {
	fs := flag.NewFlagSet("gc", flag.ContinueOnError)
	dbPath := dbFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := log.Default().Module("mastctl")

	return withWriteTx(*dbPath, func(tx kvstore.Tx) error {
		store := mast.NewStore(tx.Table(mast.NodesTable))
		removed, err := store.CollectGarbage()
		if err != nil {
			return err
		}
		logger.Info("gc", "removed", removed)
		fmt.Printf("removed %d unreferenced nodes\n", removed)
		return nil
	})
}
