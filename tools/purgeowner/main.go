package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/araddon/dateparse"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/muesli/coral"
	"github.com/pbitips/workload/internal/database"
	"github.com/pbitips/workload/internal/model"
	"github.com/pkg/errors"
	"github.com/sanity-io/litter"
)

var (
	provider string
	before   string
	dryRun   bool
)

func main() {
	c := &coral.Command{
		Use:   "purgeowner <config> <ownerId>",
		Short: "Remove all the published items of an owner from the catalog",
		Args:  coral.ExactArgs(2),
		RunE: func(c *coral.Command, args []string) error {
			konf := koanf.New(".")
			if err := konf.Load(file.Provider(args[0]), yaml.Parser()); err != nil {
				return err
			}

			var until time.Time
			if before != "" {
				var err error
				until, err = dateparse.ParseAny(before)
				if err != nil {
					return errors.Wrap(err, "invalid --before date")
				}
			}

			//
			//
			fmt.Println("Opening", konf.String("store.driver"), konf.String("store.path"))
			db, err := database.Open(c.Context(), database.Options{
				Driver:   konf.String("store.driver"),
				Path:     konf.String("store.path"),
				Codec:    konf.String("store.codec"),
				Region:   konf.String("store.dynamodb.region"),
				Endpoint: konf.String("store.dynamodb.endpoint"),
			})
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			return purge(c.Context(), db, konf.String("published_table"), args[1], until)
		},
	}
	c.Flags().StringVarP(&provider, "provider", "p", "", "Only remove items published with this identity provider")
	c.Flags().StringVarP(&before, "before", "b", "", "Only remove items published before this date")
	c.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Print the matching items without removing them")

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func purge(ctx context.Context, db database.Client, table, ownerID string, until time.Time) error {
	filter := database.Filter{
		Equal: map[string]any{model.PropertyOwnerID: ownerID},
	}
	if provider != "" {
		filter.Equal[model.PropertyOwnerIdentityProvider] = provider
	}

	// Fetch items
	records, err := db.ScanByFilter(ctx, table, filter)
	if err != nil {
		return errors.Wrap(err, "find items by owner")
	}

	items := make([]*model.PublishedItem, 0, len(records))
	for _, r := range records {
		var item model.PublishedItem
		if err = item.FromRecord(r); err != nil {
			return errors.Wrapf(err, "decode %s/%s", r.PartitionKey, r.RowKey)
		}
		if !until.IsZero() && item.CreatedDate >= until.Unix() {
			continue
		}
		items = append(items, &item)
	}

	if len(items) == 0 {
		fmt.Println("No published items for this owner")
		return nil
	}
	fmt.Println("Items found:", len(items))

	if dryRun {
		litter.Dump(items)
		return nil
	}

	// Deleting owner's items
	for _, item := range items {
		err = db.Delete(ctx, table, item.PartitionKey(), item.RowKey())
		if err != nil && !db.IsNotFound(err) {
			return errors.Wrapf(err, "delete %s/%s", item.Type, item.PublishedGuid)
		}
		fmt.Printf("%s/%s removed\n", item.Type, item.PublishedGuid)
	}
	fmt.Println("Items removed")

	return nil
}
