package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	ishell "github.com/abiosoft/ishell"
	"github.com/common-nighthawk/go-figure"
	"github.com/jhaldar/sprout/client"
	"github.com/jhaldar/sprout/lib/utils"
	"github.com/jhaldar/sprout/models"
	"github.com/jhaldar/sprout/report"
)

// guestCommands holds the commands available before signing in.
var guestCommands []Command

// userCommands holds the commands available only to signed-in parents.
var userCommands []Command

// commonCommands holds the commands available regardless of login state.
var commonCommands []Command

// loggedIn tracks whether a parent is currently signed in.
var loggedIn bool

// shell is the interactive shell instance for this application.
var shell *ishell.Shell

// Command defines a shell command: a Name, a Desc, and the Func executed when
// the command is invoked.
type Command struct {
	Name string
	Desc string
	Func func(c *ishell.Context)
}

// switchToUserCommands swaps the guest command set for the signed-in one.
func switchToUserCommands() {
	loggedIn = true
	for _, command := range guestCommands {
		shell.DeleteCmd(command.Name)
	}
	addCommands(shell, userCommands)
}

// switchToGuestCommands swaps the signed-in command set for the guest one.
func switchToGuestCommands() {
	loggedIn = false
	for _, command := range userCommands {
		shell.DeleteCmd(command.Name)
	}
	addCommands(shell, guestCommands)
}

// handleSessionError deals with an expired refresh token by signing the
// parent out; any other error is just printed.
func handleSessionError(err error) {
	if err.Error() == "expired refresh token" {
		utils.PrintError("Session expired, please sign in again by typing 'signin' in the terminal.")
		client.ClearKeyring()
		switchToGuestCommands()
		return
	}
	utils.PrintError(err.Error())
}

// chooseChild fetches the profile and asks the parent to pick a child.
func chooseChild(c *ishell.Context) (*models.Profile, models.Child, bool) {
	profile, err := client.GetProfile()
	if err != nil {
		handleSessionError(err)
		return nil, models.Child{}, false
	}
	names := make([]string, len(profile.Children))
	for i, child := range profile.Children {
		names[i] = child.Name
	}
	choice := c.MultiChoice(names, "Which child?")
	if choice < 0 {
		return nil, models.Child{}, false
	}
	return profile, profile.Children[choice], true
}

// chooseBehavior asks the parent to pick one of the profile's enabled
// behaviors.
func chooseBehavior(c *ishell.Context, profile *models.Profile) (models.Behavior, bool) {
	enabled := profile.EnabledBehaviors()
	if len(enabled) == 0 {
		utils.PrintError("no behaviors are enabled for scoring")
		return models.Behavior{}, false
	}
	labels := make([]string, len(enabled))
	for i, b := range enabled {
		labels[i] = b.Label
	}
	choice := c.MultiChoice(labels, "Which behavior?")
	if choice < 0 {
		return models.Behavior{}, false
	}
	return enabled[choice], true
}

func timeNowUTC() time.Time {
	return time.Now().UTC()
}

// readDate reads a YYYY-MM-DD date, defaulting to today on empty input.
func readDate(c *ishell.Context) (string, bool) {
	for {
		c.Print("Enter Date (YYYY-MM-DD, empty for today): ")
		input := strings.TrimSpace(c.ReadLine())
		if input == "" {
			return report.FormatDate(timeNowUTC()), true
		}
		if _, err := report.ParseDate(input); err == nil {
			return input, true
		}
		c.Println("Date must look like 2024-03-15.")
	}
}

// readPeriod reads a period mode and anchor date for the report commands.
func readPeriod(c *ishell.Context) (string, string, bool) {
	modes := []string{"day", "week", "month", "year"}
	choice := c.MultiChoice(modes, "Which period?")
	if choice < 0 {
		return "", "", false
	}
	anchor, ok := readDate(c)
	if !ok {
		return "", "", false
	}
	return modes[choice], anchor, true
}

// printReport renders a report result to the shell.
func printReport(c *ishell.Context, profile *models.Profile, child models.Child, result *client.ReportResult) {
	c.Println()
	c.Printf("Report for %s -- %s\n", child.Name, result.Report.Label)
	c.Printf("Total points: %d\n", result.Report.Total)
	if result.Tier != nil {
		c.Printf("Reward tier: %s %s\n", result.Tier.Marker, result.Tier.Label)
	} else {
		c.Println("Reward tier: none yet")
	}
	c.Println()
	for _, b := range profile.EnabledBehaviors() {
		c.Printf("  |-- %-20s %+d\n", b.Label, result.Report.Subtotals[b.ID])
	}
	c.Println()
	for _, d := range result.Report.Daily {
		if d.Total != 0 {
			c.Printf("  %s  %+d\n", d.Date, d.Total)
		}
	}
	c.Println()
}

// InitCmd initializes the shell and sets up the guest, user, and common
// command sets.
func InitCmd() {

	shell = ishell.New()

	guestCommands = []Command{
		{
			Name: "signin",
			Desc: "Sign in to your account",
			Func: func(c *ishell.Context) {
				var username, password string
				for {
					c.Print("Enter Username: ")
					username = c.ReadLine()
					if len(username) > 1 {
						break
					}
					c.Println("Username must be longer than 1 character.")
				}

				for {
					c.Print("Enter Password: ")
					password = c.ReadPassword()
					if len(password) > 0 {
						break
					}
					c.Println("Password cannot be empty.")
				}

				_, _, err := client.SignIn(username, password)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				utils.PrintBanner("Welcome, you are now signed in.")
				switchToUserCommands()
			},
		},
		{
			Name: "signup",
			Desc: "Sign up for a new family account",
			Func: func(c *ishell.Context) {
				var username, email, password, familyName, firstChildName string
				for {
					c.Print("Enter Username: ")
					username = c.ReadLine()
					if len(username) > 1 {
						break
					}
					c.Println("Username must be longer than 1 character.")
				}

				for {
					c.Print("Enter Email: ")
					email = c.ReadLine()
					if utils.ValidateEmail(email) {
						break
					}
					c.Println("Email is not valid.")
				}

				for {
					c.Print("Enter Password: ")
					password = c.ReadPassword()

					if utils.ValidatePassword(password) {
						c.Print("Confirm Password: ")
						confirmPassword := c.ReadPassword()

						if password == confirmPassword {
							break
						}
						c.Println()
						c.Println("Passwords do not match. Please try again.")
						c.Println()
					} else {
						c.Println()
						c.Println("Password must be at least 8 characters and contain both letters and numbers.")
						c.Println()
					}
				}

				c.Print("Enter Family Name: ")
				familyName = c.ReadLine()

				for {
					c.Print("Enter Your First Child's Name: ")
					firstChildName = c.ReadLine()
					if firstChildName != "" {
						break
					}
					c.Println("A child name is required.")
				}

				_, _, err := client.SignUp(username, email, password, familyName, firstChildName)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				utils.PrintBanner("Account created successfully. You are now signed in.")
				switchToUserCommands()
			},
		},
	}

	userCommands = []Command{
		{
			Name: "award",
			Desc: "Record a point for a child's behavior",
			Func: func(c *ishell.Context) {
				profile, child, ok := chooseChild(c)
				if !ok {
					return
				}
				behavior, ok := chooseBehavior(c, profile)
				if !ok {
					return
				}
				date, ok := readDate(c)
				if !ok {
					return
				}
				values := []string{"+1 (good day)", "0 (clear)", "-1 (rough day)"}
				choice := c.MultiChoice(values, "Which value?")
				if choice < 0 {
					return
				}
				value := []int{1, 0, -1}[choice]

				if _, err := client.Award(child.ID, behavior.ID, date, value); err != nil {
					handleSessionError(err)
					return
				}
				c.Printf("Recorded %+d for %s on %s.\n", value, child.Name, date)
			},
		},
		{
			Name: "report",
			Desc: "Show a child's report for a period",
			Func: func(c *ishell.Context) {
				profile, child, ok := chooseChild(c)
				if !ok {
					return
				}
				mode, anchor, ok := readPeriod(c)
				if !ok {
					return
				}
				result, err := client.GetReport(child.ID, mode, anchor)
				if err != nil {
					handleSessionError(err)
					return
				}
				printReport(c, profile, child, result)
			},
		},
		{
			Name: "export",
			Desc: "Download a child's report as a CSV file",
			Func: func(c *ishell.Context) {
				_, child, ok := chooseChild(c)
				if !ok {
					return
				}
				mode, anchor, ok := readPeriod(c)
				if !ok {
					return
				}
				filename, contents, err := client.ExportReport(child.ID, mode, anchor)
				if err != nil {
					handleSessionError(err)
					return
				}
				if err := os.WriteFile(filename, []byte(contents), 0o644); err != nil {
					utils.PrintError("failed to write file: " + err.Error())
					return
				}
				c.Printf("Report saved to %s.\n", filename)
			},
		},
		{
			Name: "children",
			Desc: "Manage the children on your profile",
			Func: func(c *ishell.Context) {
				actions := []string{"list", "add", "rename", "remove"}
				choice := c.MultiChoice(actions, "What would you like to do?")
				switch choice {
				case 0:
					profile, err := client.GetProfile()
					if err != nil {
						handleSessionError(err)
						return
					}
					for _, child := range profile.Children {
						c.Println("  |-- " + child.Name)
					}
				case 1:
					c.Print("Enter Child Name: ")
					name := c.ReadLine()
					if name == "" {
						c.Println("A child name is required.")
						return
					}
					if _, err := client.AddChild(name); err != nil {
						handleSessionError(err)
						return
					}
					c.Println("Child added.")
				case 2:
					_, child, ok := chooseChild(c)
					if !ok {
						return
					}
					c.Print("Enter New Name: ")
					name := c.ReadLine()
					if name == "" {
						c.Println("A name is required.")
						return
					}
					if _, err := client.RenameChild(child.ID, name); err != nil {
						handleSessionError(err)
						return
					}
					c.Println("Child renamed. Their point history is unchanged.")
				case 3:
					_, child, ok := chooseChild(c)
					if !ok {
						return
					}
					c.Printf("Are you sure you want to remove %s? (yes/no): ", child.Name)
					if strings.ToLower(c.ReadLine()) != "yes" {
						return
					}
					if _, err := client.RemoveChild(child.ID); err != nil {
						handleSessionError(err)
						return
					}
					c.Println("Child removed. Their recorded points are kept.")
				}
			},
		},
		{
			Name: "behaviors",
			Desc: "Manage the behavior catalog",
			Func: func(c *ishell.Context) {
				profile, err := client.GetProfile()
				if err != nil {
					handleSessionError(err)
					return
				}
				actions := []string{"list", "add", "enable/disable"}
				choice := c.MultiChoice(actions, "What would you like to do?")
				switch choice {
				case 0:
					for _, b := range profile.Behaviors {
						state := "enabled"
						if !b.Enabled {
							state = "disabled"
						}
						c.Printf("  |-- %-20s (%s)\n", b.Label, state)
					}
				case 1:
					c.Print("Enter Behavior Label: ")
					label := c.ReadLine()
					if label == "" {
						c.Println("A label is required.")
						return
					}
					if _, err := client.AddBehavior(label); err != nil {
						handleSessionError(err)
						return
					}
					c.Println("Behavior added.")
				case 2:
					labels := make([]string, len(profile.Behaviors))
					for i, b := range profile.Behaviors {
						labels[i] = b.Label
					}
					pick := c.MultiChoice(labels, "Which behavior?")
					if pick < 0 {
						return
					}
					behavior := profile.Behaviors[pick]
					if _, err := client.SetBehaviorEnabled(behavior.ID, !behavior.Enabled); err != nil {
						handleSessionError(err)
						return
					}
					if behavior.Enabled {
						c.Println("Behavior disabled. Its recorded history still counts in reports.")
					} else {
						c.Println("Behavior enabled.")
					}
				}
			},
		},
		{
			Name: "updatemyacc",
			Desc: "Update your account information",
			Func: func(c *ishell.Context) {
				var currentPassword, newUsername, newEmail, newPassword string

				for {
					c.Print("Enter Current Password: ")
					currentPassword = c.ReadPassword()
					if len(currentPassword) > 0 {
						break
					}
					c.Println("Current password cannot be empty.")
				}

				for {
					c.Print("Do you want to update your username? (yes/no): ")
					response := strings.ToLower(c.ReadLine())
					if response == "yes" || response == "no" {
						if response == "yes" {
							for {
								c.Print("Enter New Username: ")
								newUsername = c.ReadLine()
								if len(newUsername) > 1 {
									break
								}
								c.Println("New username must be longer than 1 character.")
							}
						}
						break
					}
					c.Println("Invalid response. Please type 'yes' or 'no'.")
				}

				for {
					c.Print("Do you want to update your email? (yes/no): ")
					response := strings.ToLower(c.ReadLine())
					if response == "yes" || response == "no" {
						if response == "yes" {
							for {
								c.Print("Enter New Email: ")
								newEmail = c.ReadLine()
								if utils.ValidateEmail(newEmail) {
									break
								}
								c.Println("New email is not valid.")
							}
						}
						break
					}
					c.Println("Invalid response. Please type 'yes' or 'no'.")
				}

				for {
					c.Print("Do you want to update your password? (yes/no): ")
					response := strings.ToLower(c.ReadLine())
					if response == "yes" || response == "no" {
						if response == "yes" {
							for {
								c.Print("Enter New Password: ")
								newPassword = c.ReadPassword()

								if utils.ValidatePassword(newPassword) {
									c.Print("Confirm New Password: ")
									confirmPassword := c.ReadPassword()

									if newPassword == confirmPassword {
										break
									}
									c.Println()
									c.Println("Passwords do not match. Please try again.")
									c.Println()
								} else {
									c.Println()
									c.Println("New password must be at least 8 characters and contain both letters and numbers.")
									c.Println()
								}
							}
						}
						break
					}
					c.Println("Invalid response. Please type 'yes' or 'no'.")
				}

				if err := client.UpdateAccount(currentPassword, newUsername, newEmail, newPassword); err != nil {
					handleSessionError(err)
					return
				}
				c.Println("Account updated successfully.")
			},
		},
		{
			Name: "signout",
			Desc: "Sign out from your account",
			Func: func(c *ishell.Context) {
				if err := client.SignOut(); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("You are now signed out.")
				switchToGuestCommands()
			},
		},
	}

	commonCommands = []Command{
		{
			Name: "exit",
			Desc: "Exit the application",
			Func: func(c *ishell.Context) {
				fmt.Println("Goodbye!")
				os.Exit(0)
			},
		},
	}

	// The help command is created separately to avoid the cyclic dependency
	commonCommands = append(commonCommands, Command{
		Name: "help",
		Desc: "List available commands",
		Func: func(c *ishell.Context) {
			c.Println("Available commands:")
			if loggedIn {
				for _, command := range userCommands {
					c.Println("  |-- '" + command.Name + "' : " + command.Desc)
				}
			} else {
				for _, command := range guestCommands {
					c.Println("  |-- '" + command.Name + "' : " + command.Desc)
				}
			}
			for _, command := range commonCommands {
				c.Println("  |-- '" + command.Name + "' : " + command.Desc)
			}
			c.Println()
		},
	})
}

// addCommands adds the given commands to the shell.
func addCommands(shell *ishell.Shell, commands []Command) {
	for _, command := range commands {
		shell.AddCmd(&ishell.Cmd{
			Name: command.Name,
			Help: "Command: " + command.Name,
			Func: command.Func,
		})
	}
}

// Execute welcomes the parent, adds the common and guest commands to the
// shell, and runs it.
func Execute() {
	shell.Println()
	figure.NewFigure("Sprout", "basic", true).Print()
	shell.Println("Welcome to Sprout -- the family behavior points tracker. Type 'help' to see a list of commands.")

	addCommands(shell, commonCommands)
	addCommands(shell, guestCommands)

	shell.Run()
}
