package main

import (
	"Keepsake/internal/client/gateway"
	"Keepsake/internal/client/ledger"
	"Keepsake/internal/client/screen"
	"Keepsake/internal/client/settings"
	"Keepsake/internal/client/viewer"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

func need(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: keepsake %s", usage)
	}
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	if err := need(args, 2, "login <username> <password>"); err != nil {
		return err
	}
	user, err := a.client.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", user.Nickname)
	if user.CoupleID == 0 {
		fmt.Println("not paired yet, run: keepsake pair [code]")
	}
	return nil
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	if err := need(args, 2, "register <username> <password> [nickname]"); err != nil {
		return err
	}
	nickname := args[0]
	if len(args) > 2 {
		nickname = args[2]
	}
	user, err := a.client.Register(ctx, args[0], args[1], nickname)
	if err != nil {
		return err
	}
	fmt.Printf("welcome, %s\n", user.Nickname)
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	return a.client.Logout(ctx)
}

func cmdPair(ctx context.Context, a *app, args []string) error {
	if _, err := a.client.Resume(ctx); err != nil {
		return err
	}
	code := ""
	if len(args) > 0 {
		code = args[0]
	}
	couple, err := a.client.Pair(ctx, code)
	if err != nil {
		return err
	}
	if code == "" {
		fmt.Printf("invite code: %s\n", couple.InviteCode)
		return nil
	}
	if couple.Partner != nil {
		fmt.Printf("paired with %s\n", couple.Partner.Nickname)
	}
	return nil
}

func cmdTheme(_ context.Context, a *app, args []string) error {
	if len(args) == 0 {
		fmt.Println(a.store.Theme())
		return nil
	}
	return a.store.SetTheme(settings.Theme(args[0]))
}

func cmdDays(ctx context.Context, a *app, _ []string) error {
	if _, err := a.client.Resume(ctx); err != nil {
		return err
	}
	days, err := a.client.DayAlbums(ctx, false)
	if err != nil {
		return err
	}
	for _, d := range days {
		fmt.Printf("%s  %3d photos  %s\n", d.Day, d.Count, d.CoverURL)
	}
	return nil
}

func cmdUnlock(ctx context.Context, a *app, args []string) error {
	if err := need(args, 1, "unlock <vault password>"); err != nil {
		return err
	}
	if _, err := a.client.Resume(ctx); err != nil {
		return err
	}
	vault := screen.NewVault(screen.Connect(a.client))
	if err := vault.Unlock(ctx, args[0]); err != nil {
		return err
	}
	defer func() {
		_ = vault.Close()
		_ = a.client.LockVault(context.WithoutCancel(ctx))
	}()
	for _, p := range vault.Items() {
		fmt.Printf("%s  %s  %s\n", p.Payload.Day, p.Payload.URL, p.Payload.Caption)
	}
	return nil
}

func cmdVaultPassword(ctx context.Context, a *app, args []string) error {
	if err := need(args, 1, "vault-password <new> [old]"); err != nil {
		return err
	}
	if _, err := a.client.Resume(ctx); err != nil {
		return err
	}
	old := ""
	if len(args) > 1 {
		old = args[1]
	}
	if err := a.client.SetVaultPassword(ctx, old, args[0]); err != nil {
		return err
	}
	fmt.Println("vault password updated")
	return nil
}

// readLines 逐行读取输入，ctx 结束或输入关闭时关闭通道
func readLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// chatPrinter 只打印尚未输出过的已确认消息
type chatPrinter struct {
	mu      sync.Mutex
	me      string
	w       io.Writer
	printed map[string]bool
}

func (p *chatPrinter) render(items []ledger.Entity[screen.Message]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range items {
		if e.Pending || p.printed[e.ID] {
			continue
		}
		p.printed[e.ID] = true
		who := "them"
		if e.OwnerID == p.me {
			who = "me"
		}
		fmt.Fprintf(p.w, "[%s] %s: %s\n", e.CreatedAt.Local().Format("01-02 15:04"), who, e.Payload.Content)
	}
}

func cmdChat(ctx context.Context, a *app, _ []string) error {
	me, err := a.client.Resume(ctx)
	if err != nil {
		return err
	}
	chat := screen.NewChat(screen.Connect(a.client), 0)
	printer := &chatPrinter{me: strconv.FormatUint(me.ID, 10), w: os.Stdout, printed: make(map[string]bool)}
	chat.OnChange(printer.render)
	if err = chat.Open(ctx); err != nil {
		return err
	}
	defer chat.Close()

	lines := readLines(ctx, os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if _, err = chat.Send(ctx, line); err != nil {
				if errors.Is(err, gateway.ErrAuth) {
					return err
				}
				reportSendError(err)
			}
		}
	}
}

func reportSendError(err error) {
	var ve *ledger.ValidationError
	var ne *screen.NetworkError
	switch {
	case errors.As(err, &ve):
		fmt.Fprintln(os.Stderr, "! message is empty")
	case errors.As(err, &ne) && ne.Retryable:
		fmt.Fprintln(os.Stderr, "! not sent, check your connection and try again")
	default:
		fmt.Fprintf(os.Stderr, "! not sent: %v\n", err)
	}
}

func cmdSlideshow(ctx context.Context, a *app, args []string) error {
	if err := need(args, 1, "slideshow <YYYY-MM-DD> [--interval 3s]"); err != nil {
		return err
	}
	if _, err := a.client.Resume(ctx); err != nil {
		return err
	}
	interval := a.store.SlideshowInterval()
	if a.flags.Changed("interval") {
		d, _ := a.flags.GetDuration("interval")
		if err := a.store.SetSlideshowInterval(d); err != nil {
			return err
		}
		interval = a.store.SlideshowInterval()
	}

	gallery := screen.NewDayGallery(screen.Connect(a.client), args[0])
	if err := gallery.Open(ctx); err != nil {
		return err
	}
	defer gallery.Close()
	if gallery.Len() == 0 {
		fmt.Printf("no photos on %s\n", args[0])
		return nil
	}

	v := gallery.Slideshow()
	defer v.Close()
	show := func(i int) {
		items := gallery.Items()
		if i < 0 || i >= len(items) {
			return
		}
		p := items[i].Payload
		fmt.Printf("[%d/%d] %s %s\n", i+1, len(items), p.URL, p.Caption)
	}
	v.OnJump(show)
	show(0)
	v.Start(interval)
	fmt.Println("n next, p previous, <number> jump, s stop/start, q quit")

	lines := readLines(ctx, os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			target := v.Index()
			switch line = strings.TrimSpace(line); line {
			case "q":
				return nil
			case "s":
				if v.State() == viewer.Idle {
					v.Start(interval)
				} else {
					v.Stop()
				}
				continue
			case "n":
				target++
			case "p":
				target--
			default:
				n, err := strconv.Atoi(line)
				if err != nil {
					continue
				}
				target = n - 1
			}
			if v.OnUserNavigate(target) {
				show(target)
			}
		}
	}
}
