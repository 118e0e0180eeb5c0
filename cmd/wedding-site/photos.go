package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"wedding-site/internal/gallery"
)

// browsePhotos runs a line based photo browser over the shared photo feed
func browsePhotos(ctx context.Context, lister gallery.PhotoLister, in io.Reader, out io.Writer) error {
	feed := gallery.NewFeed(lister, gallery.PageSize)
	if _, err := feed.Load(ctx, false); err != nil {
		return fmt.Errorf("failed to load photos: %w", err)
	}
	nav := gallery.NewNavigator(feed.Images())

	printPhotoList(out, feed)
	printPhotoHelp(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "":
			continue
		case "q":
			return nil
		case "l":
			printPhotoList(out, feed)
		case "o":
			i, err := strconv.Atoi(arg)
			if err != nil || !nav.Open(i-1) {
				fmt.Fprintln(out, "No such photo.")
				continue
			}
			printCurrent(out, nav)
		case "n":
			nav.HandleKey("ArrowRight")
			printCurrent(out, nav)
		case "p":
			nav.HandleKey("ArrowLeft")
			printCurrent(out, nav)
		case "c":
			nav.HandleKey("Escape")
		case "f":
			feed.Filter(arg)
			nav.SetImages(feed.Images())
			printPhotoList(out, feed)
		case "m":
			if !feed.HasMore() {
				fmt.Fprintln(out, "All photos loaded.")
				continue
			}
			n, err := feed.Load(ctx, true)
			if err != nil {
				fmt.Fprintf(out, "Failed to load photos: %v\n", err)
				continue
			}
			nav.SetImages(feed.Images())
			fmt.Fprintf(out, "Loaded %d more.\n", n)
		default:
			printPhotoHelp(out)
		}
	}
}

func printPhotoList(out io.Writer, feed *gallery.Feed) {
	if msg := feed.EmptyMessage(); msg != "" {
		fmt.Fprintln(out, msg)
		return
	}
	for i, img := range feed.Images() {
		fmt.Fprintf(out, "%3d. %s\n", i+1, img.Caption)
	}
	if feed.HasMore() {
		fmt.Fprintln(out, "(more available, type m)")
	}
}

func printCurrent(out io.Writer, nav *gallery.Navigator) {
	img, ok := nav.Current()
	if !ok {
		fmt.Fprintln(out, "Open a photo first.")
		return
	}
	fmt.Fprintf(out, "[%d/%d] %s\n      %s\n", nav.Index()+1, nav.Len(), img.Caption, img.Src)
}

func printPhotoHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands: l list, o <n> open, n next, p previous, c close, f <text> filter, m load more, q quit")
}
