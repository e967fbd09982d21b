package extract

import "fmt"

// Strategy is one way of reading a field. A non-nil error means "try the next one".
type Strategy[T any] func() (T, error)

// Resolve evaluates strategies in order and returns the first successful value.
// Strategies that fail or panic are skipped; def is returned once all are exhausted.
func Resolve[T any](def T, strategies ...Strategy[T]) T {
	for _, strategy := range strategies {
		if strategy == nil {
			continue
		}
		if value, err := attempt(strategy); err == nil {
			return value
		}
	}
	return def
}

// ResolveErr is Resolve for mandatory fields: it reports the last failure instead of
// substituting a default.
func ResolveErr[T any](strategies ...Strategy[T]) (T, error) {
	var (
		zero    T
		lastErr = fmt.Errorf("no strategies: %w", ErrNotFound)
	)
	for _, strategy := range strategies {
		if strategy == nil {
			continue
		}
		value, err := attempt(strategy)
		if err == nil {
			return value, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

func attempt[T any](strategy Strategy[T]) (value T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("strategy panicked: %v", rec)
		}
	}()
	return strategy()
}

// TextStrategy reads the text of the first descendant of el matching selector.
func TextStrategy(el Element, selector string) Strategy[string] {
	return func() (string, error) {
		return TextOf(el, selector)
	}
}

// LastTextStrategy reads the text of the last descendant of el matching selector.
func LastTextStrategy(el Element, selector string) Strategy[string] {
	return func() (string, error) {
		nodes, err := el.FindAll(selector)
		if err != nil {
			return "", err
		}
		if len(nodes) == 0 {
			return "", fmt.Errorf("%s: %w", selector, ErrNotFound)
		}
		return nodes[len(nodes)-1].Text()
	}
}
