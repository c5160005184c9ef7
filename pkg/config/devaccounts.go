package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/mindrush/portal/pkg/auth"
	"github.com/mindrush/portal/pkg/observability"
)

// devAccountsFile is the YAML shape of the dev accounts file:
//
//	accounts:
//	  - email: admin@example.com
//	    password: hunter2
//	    firstName: Admin
//	    lastName: User
type devAccountsFile struct {
	Accounts []auth.DevAccount `yaml:"accounts"`
}

// LoadDevAccounts reads the developer account set from a YAML file. A
// missing path returns an empty set, keeping fixed credentials out of
// builds that never configure one.
func LoadDevAccounts(path string) ([]auth.DevAccount, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dev accounts file: %w", err)
	}

	var file devAccountsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse dev accounts file: %w", err)
	}

	for i, a := range file.Accounts {
		if a.Email == "" {
			return nil, fmt.Errorf("dev account %d has no email", i)
		}
	}
	return file.Accounts, nil
}

// WatchDevAccounts reloads the account file whenever it changes, calling
// onChange with the new set. Returns a stop function. Parse failures keep
// the previous set.
func WatchDevAccounts(path string, onChange func([]auth.DevAccount), logger *observability.Logger) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory: editors replace files on save, which drops the
	// watch on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				accounts, err := LoadDevAccounts(path)
				if err != nil {
					logger.WithError(err).Warn("dev accounts reload failed, keeping previous set")
					continue
				}
				logger.WithField("accounts", len(accounts)).Info("dev accounts reloaded")
				onChange(accounts)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("dev accounts watcher error")
			}
		}
	}()

	return watcher.Close, nil
}
