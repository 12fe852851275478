package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopdesk/shopdesk/internal/console"
	"github.com/shopdesk/shopdesk/internal/guard"
)

// ---------------------------------------------------------------------------
// products
// ---------------------------------------------------------------------------

func (a *app) cmdProducts(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "list", "search", "category", "filter", "show":
		if err := a.require(ctx, guard.RequireSession); err != nil {
			return err
		}
	case "add", "edit", "delete":
		if err := a.require(ctx, guard.RequireAdmin); err != nil {
			return err
		}
	default:
		return usagef("unknown products subcommand %q", sub)
	}

	switch sub {
	case "list":
		return a.printProducts(a.console.Products.List(ctx))

	case "search":
		if len(args) < 1 {
			return usagef("products search requires a keyword")
		}
		return a.printProducts(a.console.Products.Search(ctx, strings.Join(args, " ")))

	case "category":
		id, err := idArg(args, "products category", "category id")
		if err != nil {
			return err
		}
		return a.printProducts(a.console.Products.ByCategory(ctx, id))

	case "filter":
		f, err := parseFilter(args)
		if err != nil {
			return err
		}
		return a.printProducts(a.console.Products.Filter(ctx, f))

	case "show":
		id, err := idArg(args, "products show", "product id")
		if err != nil {
			return err
		}
		v := a.console.Products.Show(ctx, id)
		if err := viewErr(v); err != nil {
			return err
		}
		p := v.Data
		fmt.Fprintf(a.out, "  %-12s %d\n", "ID", p.ID)
		fmt.Fprintf(a.out, "  %-12s %s\n", "NAME", p.Name)
		fmt.Fprintf(a.out, "  %-12s %s\n", "SKU", p.SKU)
		fmt.Fprintf(a.out, "  %-12s %s\n", "PRICE", console.FormatCurrency(p.Price))
		fmt.Fprintf(a.out, "  %-12s %d\n", "STOCK", p.StockQty)
		fmt.Fprintf(a.out, "  %-12s %s\n", "CATEGORY", orDash(p.CategoryName))
		fmt.Fprintf(a.out, "  %-12s %s\n", "PICTURE", orDash(p.Picture))
		if p.Description != "" {
			fmt.Fprintf(a.out, "\n  %s\n", p.Description)
		}
		return nil

	case "add":
		prep := a.console.Products.PrepareNew(ctx)
		form := prep.Form
		if _, err := productFlags("products add", &form, args); err != nil {
			return err
		}
		p, out, err := a.console.Products.Create(ctx, form)
		if err != nil {
			return err
		}
		a.notice(out)
		fmt.Fprintf(a.out, "Created product %d (%s)\n", p.ID, p.SKU)
		return nil

	case "edit":
		id, err := idArg(args, "products edit", "product id")
		if err != nil {
			return err
		}
		prep, err := a.console.Products.PrepareEdit(ctx, id)
		if err != nil {
			return err
		}
		form := prep.Form
		if _, err := productFlags("products edit", &form, args[1:]); err != nil {
			return err
		}
		p, out, err := a.console.Products.Update(ctx, id, form)
		if err != nil {
			return err
		}
		a.notice(out)
		fmt.Fprintf(a.out, "Updated product %d\n", p.ID)
		return nil

	default: // delete
		id, err := idArg(args, "products delete", "product id")
		if err != nil {
			return err
		}
		out, err := a.console.Products.Delete(ctx, id)
		if err != nil {
			return err
		}
		a.notice(out)
		return nil
	}
}

func (a *app) printProducts(v console.View[[]console.Product]) error {
	if err := viewErr(v); err != nil {
		return err
	}
	if v.State == console.Empty {
		fmt.Fprintln(a.out, "No products found")
		return nil
	}
	fmt.Fprintf(a.out, "  %-5s %-28s %-10s %-14s %-6s %s\n", "ID", "NAME", "SKU", "PRICE", "STOCK", "CATEGORY")
	fmt.Fprintf(a.out, "  %-5s %-28s %-10s %-14s %-6s %s\n", "--", "----", "---", "-----", "-----", "--------")
	for _, p := range v.Data {
		fmt.Fprintf(a.out, "  %-5d %-28s %-10s %-14s %-6d %s\n",
			p.ID, p.Name, p.SKU, console.FormatCurrency(p.Price), p.StockQty, orDash(p.CategoryName))
	}
	return nil
}

// productFlags applies the product form flags on top of form, leaving
// unset fields as they were.
func productFlags(name string, form *console.ProductForm, args []string) ([]string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&form.Name, "name", form.Name, "product name")
	fs.StringVar(&form.Description, "description", form.Description, "description")
	fs.StringVar(&form.SKU, "sku", form.SKU, "stock keeping unit")
	fs.StringVar(&form.Price, "price", form.Price, "base price")
	fs.StringVar(&form.StockQty, "stock", form.StockQty, "stock quantity")
	fs.StringVar(&form.CategoryID, "category", form.CategoryID, "category id")
	fs.StringVar(&form.Picture, "picture", form.Picture, "picture URL")
	return parseFlags(fs, args)
}

func parseFilter(args []string) (console.Filter, error) {
	var f console.Filter
	var category, minPrice, maxPrice string
	fs := flag.NewFlagSet("products filter", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.Keyword, "keyword", "", "name contains")
	fs.StringVar(&category, "category", "", "category id")
	fs.StringVar(&minPrice, "min", "", "minimum price")
	fs.StringVar(&maxPrice, "max", "", "maximum price")
	fs.StringVar(&f.Sort, "sort", "", "asc or desc by price")
	if _, err := parseFlags(fs, args); err != nil {
		return f, err
	}

	if category != "" {
		id, err := strconv.ParseInt(category, 10, 64)
		if err != nil {
			return f, usagef("--category must be a number")
		}
		f.CategoryID = id
	}
	if minPrice != "" {
		v, err := strconv.ParseFloat(minPrice, 64)
		if err != nil {
			return f, usagef("--min must be a number")
		}
		f.MinPrice = &v
	}
	if maxPrice != "" {
		v, err := strconv.ParseFloat(maxPrice, 64)
		if err != nil {
			return f, usagef("--max must be a number")
		}
		f.MaxPrice = &v
	}
	switch f.Sort {
	case "", "asc", "desc":
	default:
		return f, usagef("--sort must be asc or desc")
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// categories
// ---------------------------------------------------------------------------

func (a *app) cmdCategories(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "list":
		if err := a.require(ctx, guard.RequireSession); err != nil {
			return err
		}
		v := a.console.Categories.List(ctx)
		if err := viewErr(v); err != nil {
			return err
		}
		if v.State == console.Empty {
			fmt.Fprintln(a.out, "No categories found")
			return nil
		}
		fmt.Fprintf(a.out, "  %-5s %-20s %s\n", "ID", "NAME", "DESCRIPTION")
		fmt.Fprintf(a.out, "  %-5s %-20s %s\n", "--", "----", "-----------")
		for _, c := range v.Data {
			fmt.Fprintf(a.out, "  %-5d %-20s %s\n", c.ID, c.Name, orDash(c.Description))
		}
		return nil

	case "add":
		if err := a.require(ctx, guard.RequireAdmin); err != nil {
			return err
		}
		if len(args) < 1 {
			return usagef("categories add requires a name")
		}
		form := console.CategoryForm{Name: args[0]}
		if len(args) > 1 {
			form.Description = strings.Join(args[1:], " ")
		}
		c, out, err := a.console.Categories.Create(ctx, form)
		if err != nil {
			return err
		}
		a.notice(out)
		fmt.Fprintf(a.out, "Created category %d\n", c.ID)
		return nil

	default:
		return usagef("unknown categories subcommand %q", sub)
	}
}

// idArg parses args[0] as a positive id.
func idArg(args []string, cmd, what string) (int64, error) {
	if len(args) < 1 {
		return 0, usagef("%s requires a %s", cmd, what)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, usagef("%s: invalid %s %q", cmd, what, args[0])
	}
	return id, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
